package config

// GetDefaultContentTemplate returns the full chapter content prompt used on the first attempt
func GetDefaultContentTemplate() string {
	return `You are building one chapter of an interactive course titled "{{.CourseTitle}}".

COURSE OUTLINE:
{{range $i, $c := .Chapters}}{{$i}}. {{$c}}
{{end}}
TARGET CHAPTER: "{{.ChapterCaption}}" ({{.TimeMinutes}} minutes)

For EVERY learning point below write {{.SubsectionsPerPoint}} subsection(s). Each subsection must contain:
- a heading
- 2-3 paragraphs of explanation
- one visual element (chart, diagram, formula, animation or code block)
- one worked example
{{range .Points}}
* {{.}}
{{end}}
DIFFICULTY: {{.Difficulty}}
{{.DifficultyInstructions}}

Write all user-facing text in {{.Language}}.

OUTPUT FORMAT:
Return exactly one arrow function component: () => { ... return (<div>...</div>); }
- Do not write import statements; these identifiers are already in scope: {{.AllowedIdentifiers}}
- Use React hooks only at the top level of the component
- Every element rendered from an array needs a unique key prop
- Do not reference any identifier you have not declared or that is not listed above
- End with a "Key Takeaways" section
{{if .Context}}
REFERENCE MATERIAL (from the learner's documents, use it where relevant):
{{.Context}}
{{end}}`
}

// GetDefaultContentRetryTemplate returns the rewrite prompt used after a failed attempt.
// It replaces the full prompt entirely.
func GetDefaultContentRetryTemplate() string {
	return `{{if .PreviousCode}}The following React component failed static validation.

PREVIOUS CODE:
{{.PreviousCode}}
{{else}}The previous response did not contain a React component.
{{end}}

VALIDATION ERRORS (JSON):
{{.Errors}}

Rewrite the component from scratch so that every listed error is fixed. Keep all user-facing text in {{.Language}}.
Return exactly one arrow function component: () => { ... return (<div>...</div>); }
Do not write import statements; these identifiers are already in scope: {{.AllowedIdentifiers}}`
}

// GetDefaultQuizTemplate returns the quiz generation prompt
func GetDefaultQuizTemplate() string {
	return `Create a quiz for the chapter "{{.ChapterCaption}}".

CHAPTER MATERIAL:
{{.Content}}

Requirements:
- Between {{.MinQuestions}} and {{.MaxQuestions}} questions
- Mix "multiple_choice" questions (answerA-answerD, correctAnswer is one of "a","b","c","d", with an explanation)
  and "open_text" questions (correctAnswer is a reference answer, gradingCriteria explains how to award points)
- Difficulty: {{.Difficulty}}
- Language: {{.Language}}

Return ONLY a JSON object: {"questions": [...]}`
}

// GetDefaultPlanTemplate returns the course outline prompt
func GetDefaultPlanTemplate() string {
	return `Design the chapter outline for a course about: "{{.Query}}".

Total time available: {{.TotalMinutes}} minutes. The chapters' timeMinutes must add up to roughly this total.
Difficulty: {{.Difficulty}}
Language: {{.Language}}
{{if .HasDocuments}}The learner uploaded reference documents; plan chapters that can draw on them.
{{end}}
Each chapter has a caption, 3-6 contentPoints (concrete learning points) and timeMinutes. Add a short note only when useful.

Return ONLY a JSON object: {"chapters": [{"caption": "...", "contentPoints": ["..."], "timeMinutes": 30, "note": "..."}]}`
}

// GetDefaultInfoTemplate returns the course metadata prompt
func GetDefaultInfoTemplate() string {
	return `A learner asked for a course about: "{{.Query}}".
Difficulty: {{.Difficulty}}
Language: {{.Language}}

Write a concise course title, a 2-3 sentence description, and a short English image search query for a cover photo.
Return ONLY a JSON object: {"title": "...", "description": "...", "imageQuery": "..."}`
}

// GetDefaultGradingTemplate returns the open-text grading prompt
func GetDefaultGradingTemplate() string {
	return `You are grading a learner's answer in the course "{{.CourseTitle}}" ({{.Difficulty}}).
Course description: {{.CourseDescription}}

QUESTION:
{{.Question}}

REFERENCE ANSWER:
{{.CorrectAnswer}}
{{if .GradingCriteria}}
GRADING CRITERIA:
{{.GradingCriteria}}
{{end}}
LEARNER ANSWER:
{{.UserAnswer}}

Award 0 (incorrect), 1 (partially correct) or 2 (correct) points and give short, encouraging feedback in {{.Language}}.
Return ONLY a JSON object: {"points": 0, "feedback": "..."}`
}
