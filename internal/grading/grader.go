// Package grading scores open-text quiz answers with a model call
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/generator"
	"github.com/lamim/uxie/internal/metrics"
	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/internal/util"
	"github.com/lamim/uxie/pkg/models"
)

// ErrCourseNotFound is returned when the graded question's course does not exist
var ErrCourseNotFound = errors.New("course not found")

const unableToGrade = "Unable to grade answer"

// CourseLookup loads course metadata for the grading prompt
type CourseLookup interface {
	GetCourse(ctx context.Context, courseID string) (*store.CourseRecord, error)
}

// GradeRequest is one learner answer to grade
type GradeRequest struct {
	CourseID        string `json:"courseId"`
	Question        string `json:"question"`
	CorrectAnswer   string `json:"correctAnswer"`
	GradingCriteria string `json:"gradingCriteria,omitempty"`
	UserAnswer      string `json:"userAnswer"`
}

// Validate checks the required fields
func (r GradeRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.CourseID) == "":
		return fmt.Errorf("courseId is required")
	case strings.TrimSpace(r.Question) == "":
		return fmt.Errorf("question is required")
	case strings.TrimSpace(r.CorrectAnswer) == "":
		return fmt.Errorf("correctAnswer is required")
	}
	return nil
}

var gradingSchema = &api.Schema{
	Name:        "grading",
	Description: "Points and feedback for a learner answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"points":   map[string]any{"type": "integer", "enum": []int{0, 1, 2}},
			"feedback": map[string]any{"type": "string"},
		},
		"required":             []string{"points", "feedback"},
		"additionalProperties": false,
	},
}

// Grader handles open-text answer grading
type Grader struct {
	model       api.TextGenerator
	courses     CourseLookup
	template    string
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// Option configures a Grader
type Option func(*Grader)

// WithTemplate overrides the grading prompt
func WithTemplate(tmpl string) Option {
	return func(g *Grader) {
		if tmpl != "" {
			g.template = tmpl
		}
	}
}

// WithCallTimeout sets the model call deadline
func WithCallTimeout(d time.Duration) Option {
	return func(g *Grader) {
		g.callTimeout = d
	}
}

// WithMetrics records grading outcomes
func WithMetrics(m *metrics.Collector) Option {
	return func(g *Grader) {
		g.metrics = m
	}
}

// New creates a new grader
func New(model api.TextGenerator, courses CourseLookup, logger *slog.Logger, opts ...Option) *Grader {
	g := &Grader{
		model:       model,
		courses:     courses,
		template:    config.GetDefaultGradingTemplate(),
		callTimeout: 120 * time.Second,
		logger:      logger.With("component", "grading"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade scores one answer. A missing course is an error; an unusable model
// response yields zero points with a generic message.
func (g *Grader) Grade(ctx context.Context, req GradeRequest) (models.Grading, error) {
	course, err := g.courses.GetCourse(ctx, req.CourseID)
	if err != nil {
		return models.Grading{}, fmt.Errorf("failed to load course %s: %w", req.CourseID, err)
	}
	if course == nil {
		return models.Grading{}, fmt.Errorf("%w: %s", ErrCourseNotFound, req.CourseID)
	}

	lang := course.Language
	if !lang.Valid() {
		lang = models.LanguageEnglish
	}
	prompt, err := util.RenderTemplate(g.template, map[string]interface{}{
		"CourseTitle":       course.Title,
		"CourseDescription": course.Description,
		"Difficulty":        string(course.Difficulty),
		"Language":          lang.DisplayName(),
		"Question":          req.Question,
		"CorrectAnswer":     req.CorrectAnswer,
		"GradingCriteria":   req.GradingCriteria,
		"UserAnswer":        req.UserAnswer,
	})
	if err != nil {
		return models.Grading{}, fmt.Errorf("failed to render grading template: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	gen, err := g.model.Generate(callCtx, prompt, gradingSchema)
	g.metrics.IncrementGeneration("grading", err == nil)
	if err != nil {
		return models.Grading{}, fmt.Errorf("grading call failed: %w", err)
	}

	grading, err := generator.Decode[models.Grading](gen, nil)
	if err != nil {
		g.logger.Warn("Grading response unusable", "course_id", req.CourseID, "error", err)
		return models.Grading{Points: 0, Feedback: unableToGrade}, nil
	}

	grading.Points = clampPoints(grading.Points)
	grading.Feedback = strings.TrimSpace(grading.Feedback)
	if grading.Feedback == "" {
		grading.Feedback = unableToGrade
	}

	g.logger.Debug("Answer graded", "course_id", req.CourseID, "points", grading.Points)
	return grading, nil
}

func clampPoints(p int) int {
	return min(max(p, 0), 2)
}
