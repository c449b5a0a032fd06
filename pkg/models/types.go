package models

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is the requested course difficulty
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Language is the course output language
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageIndonesian Language = "id"
)

// Valid reports whether l is a supported language
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageIndonesian
}

// DisplayName returns the human readable language name used in prompts
func (l Language) DisplayName() string {
	if l == LanguageIndonesian {
		return "Indonesian (Bahasa Indonesia)"
	}
	return "English"
}

// ChapterPlan is one entry of the course outline produced by the planner
type ChapterPlan struct {
	Caption       string   `json:"caption"`
	ContentPoints []string `json:"contentPoints"`
	TimeMinutes   int      `json:"timeMinutes"`
	Note          string   `json:"note,omitempty"`
}

// Content point bounds requested from the planner. Plans longer than the
// maximum are trimmed; shorter ones are kept.
const (
	MinContentPoints = 3
	MaxContentPoints = 6
)

// Validate checks the structural constraints of a chapter plan.
// The point-count bounds are enforced loosely by the planner (it trims, not rejects).
func (p ChapterPlan) Validate() error {
	if strings.TrimSpace(p.Caption) == "" {
		return fmt.Errorf("chapter caption is empty")
	}
	if len(p.ContentPoints) == 0 {
		return fmt.Errorf("chapter %q has no content points", p.Caption)
	}
	if p.TimeMinutes <= 0 {
		return fmt.Errorf("chapter %q has non-positive time budget %d", p.Caption, p.TimeMinutes)
	}
	return nil
}

// Diagnostic is a single line-addressed validator finding
type Diagnostic struct {
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	RuleCode string `json:"ruleCode,omitempty"`
}

// ValidationResult is the verdict for one candidate snippet
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
}

// GenerationAttempt is the accumulator threaded through the content retry fold
type GenerationAttempt struct {
	Iteration  int
	Candidate  string
	Validation *ValidationResult
}

// Succeeded reports whether the attempt produced a validated candidate
func (a GenerationAttempt) Succeeded() bool {
	return a.Validation != nil && a.Validation.Valid && a.Candidate != ""
}

// ChapterContent is the validated (or fallback) UI snippet for a chapter
type ChapterContent struct {
	Code         string   `json:"code"`
	KeyTakeaways []string `json:"keyTakeaways"`
}

// QuestionType discriminates quiz question variants
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOpenText       QuestionType = "open_text"
)

// Question is a tagged variant: multiple choice fields are set only for
// QuestionMultipleChoice, GradingCriteria only for QuestionOpenText.
type Question struct {
	Type            QuestionType `json:"type"`
	Question        string       `json:"question"`
	AnswerA         string       `json:"answerA,omitempty"`
	AnswerB         string       `json:"answerB,omitempty"`
	AnswerC         string       `json:"answerC,omitempty"`
	AnswerD         string       `json:"answerD,omitempty"`
	CorrectAnswer   string       `json:"correctAnswer"`
	Explanation     string       `json:"explanation,omitempty"`
	GradingCriteria string       `json:"gradingCriteria,omitempty"`
}

// Validate checks a question against its variant's shape
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question text is empty")
	}
	switch q.Type {
	case QuestionMultipleChoice:
		for label, answer := range map[string]string{"a": q.AnswerA, "b": q.AnswerB, "c": q.AnswerC, "d": q.AnswerD} {
			if strings.TrimSpace(answer) == "" {
				return fmt.Errorf("multiple choice answer %s is empty", label)
			}
		}
		switch q.CorrectAnswer {
		case "a", "b", "c", "d":
		default:
			return fmt.Errorf("correct answer must be one of a, b, c, d (got %q)", q.CorrectAnswer)
		}
	case QuestionOpenText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("open text question has no reference answer")
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

const (
	MinQuizQuestions = 3
	MaxQuizQuestions = 15
)

// Quiz is the question set for one chapter
type Quiz struct {
	Questions []Question `json:"questions"`
}

// FullChapter is the assembled per-chapter aggregate
type FullChapter struct {
	Plan     ChapterPlan    `json:"plan"`
	Content  ChapterContent `json:"content"`
	Quiz     Quiz           `json:"quiz"`
	ImageURL string         `json:"imageUrl,omitempty"`
}

// CourseInfo is the course-level metadata
type CourseInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageQuery  string `json:"imageQuery"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// DefaultCourseInfo is substituted when the info generator returns nothing
func DefaultCourseInfo(query string) CourseInfo {
	return CourseInfo{
		Title:       "Untitled Course",
		Description: "",
		ImageQuery:  query,
	}
}

// FullCourse is the root aggregate returned by the orchestrator
type FullCourse struct {
	ID       string        `json:"id,omitempty"`
	Info     CourseInfo    `json:"info"`
	Chapters []FullChapter `json:"chapters"`
}

// Grading is the verdict for one open-text answer
type Grading struct {
	Points   int    `json:"points"`
	Feedback string `json:"feedback"`
}

// CourseRequest is the payload that starts a course-creation run
type CourseRequest struct {
	Query       string     `json:"query"`
	TimeHours   float64    `json:"timeHours"`
	Difficulty  Difficulty `json:"difficulty"`
	Language    Language   `json:"language"`
	DocumentIDs []string   `json:"documentIds,omitempty"`
	CourseID    string     `json:"courseId,omitempty"`
}

// Validate checks that the request can drive a run
func (r CourseRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if r.TimeHours <= 0 {
		return fmt.Errorf("timeHours must be positive (got %v)", r.TimeHours)
	}
	if !r.Difficulty.Valid() {
		return fmt.Errorf("difficulty must be one of easy, medium, hard (got %q)", r.Difficulty)
	}
	if !r.Language.Valid() {
		return fmt.Errorf("language must be one of en, id (got %q)", r.Language)
	}
	return nil
}

// TotalMinutes converts the requested hours into minutes
func (r CourseRequest) TotalMinutes() int {
	return int(r.TimeHours * 60)
}

// CourseStatus is the durable status of a persisted course
type CourseStatus string

const (
	CourseGenerating CourseStatus = "generating"
	CourseFinished   CourseStatus = "finished"
	CourseFailed     CourseStatus = "failed"
)

// ProgressEvent is emitted by the progress-reporting orchestrator entry point
type ProgressEvent struct {
	Phase   string `json:"phase"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

// RunStats tracks statistics for a single course generation
type RunStats struct {
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	TotalChapters    int           `json:"total_chapters"`
	FallbackChapters int           `json:"fallback_chapters"`
	QuizFailures     int           `json:"quiz_failures"`
	ContentAttempts  int           `json:"content_attempts"`
	TotalDuration    time.Duration `json:"total_duration"`
}
