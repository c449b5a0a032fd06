package config

// GetDefaultContentSystemPrompt returns the system prompt for chapter content generation
func GetDefaultContentSystemPrompt() string {
	return `You are an expert educator and React developer. You write self-contained interactive lesson components in JSX.
You never use import statements, never use TypeScript, and only use the identifiers you are told are in scope.`
}

// GetDefaultChatSystemPrompt returns the system prompt for the course tutor chat.
// Rendered with CourseTitle, CourseDescription and Language.
func GetDefaultChatSystemPrompt() string {
	return `You are a friendly tutor for the course "{{.CourseTitle}}".
{{if .CourseDescription}}Course description: {{.CourseDescription}}
{{end}}Answer questions about the course material clearly and briefly, in {{.Language}}. If a question is unrelated to the course, gently steer back.`
}

// DifficultyInstructions returns the difficulty-specific writing guidance
func DifficultyInstructions(difficulty string) string {
	switch difficulty {
	case "easy":
		return "Assume no prior knowledge. Use everyday analogies, short sentences and avoid jargon; define every new term."
	case "hard":
		return "Assume solid fundamentals. Go deep into edge cases, formal definitions and trade-offs; include challenging examples."
	default:
		return "Assume basic familiarity. Balance intuition with precise definitions and include at least one non-trivial example."
	}
}
