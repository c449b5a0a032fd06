// Package content produces the interactive JSX component for one chapter.
// Generation retries with validator feedback and falls back to a fixed
// overview snippet, so it always yields usable content.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/metrics"
	"github.com/lamim/uxie/internal/util"
	"github.com/lamim/uxie/pkg/models"
)

// MaxIterations bounds the model calls spent on one chapter
const MaxIterations = 5

// MaxTakeaways is the number of content points kept as key takeaways
const MaxTakeaways = 5

// Rule codes for attempts that never reached the validator
const (
	RuleFormatViolation = "format-violation"
	RuleGenerationError = "generation-error"
	RulePromptError     = "prompt-error"
)

// Extractor pulls a candidate component out of free-form model output
type Extractor interface {
	Extract(text string) (string, bool)
}

// Validator checks a candidate component
type Validator interface {
	Validate(candidate string) models.ValidationResult
}

// ChapterRequest is everything needed to write one chapter
type ChapterRequest struct {
	Plan        models.ChapterPlan
	CourseTitle string
	Chapters    []string // captions of every chapter in the course, in order
	Difficulty  models.Difficulty
	Language    models.Language
	Context     string // retrieved document excerpts, appended verbatim
}

// Result reports how the content was obtained
type Result struct {
	Content  models.ChapterContent
	Attempts int
	Fallback bool
}

// Templates holds the prompt templates used by the generator
type Templates struct {
	Content string
	Retry   string
}

// Generator runs the generate-extract-validate loop for chapters
type Generator struct {
	model       api.TextGenerator
	extractor   Extractor
	validator   Validator
	templates   Templates
	allowed     string
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// Option configures a Generator
type Option func(*Generator)

// WithTemplates overrides the prompt templates; empty fields keep the defaults
func WithTemplates(t Templates) Option {
	return func(g *Generator) {
		if t.Content != "" {
			g.templates.Content = t.Content
		}
		if t.Retry != "" {
			g.templates.Retry = t.Retry
		}
	}
}

// WithCallTimeout sets the deadline for each model call
func WithCallTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.callTimeout = d
	}
}

// WithAllowedIdentifiers lists the names the component may use without declaring them
func WithAllowedIdentifiers(names []string) Option {
	return func(g *Generator) {
		g.allowed = strings.Join(names, ", ")
	}
}

// WithMetrics records attempt counts and outcomes
func WithMetrics(m *metrics.Collector) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// New creates a Generator
func New(model api.TextGenerator, extractor Extractor, validator Validator, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		model:     model,
		extractor: extractor,
		validator: validator,
		templates: Templates{
			Content: config.GetDefaultContentTemplate(),
			Retry:   config.GetDefaultContentRetryTemplate(),
		},
		callTimeout: 120 * time.Second,
		logger:      logger.With("component", "content"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the chapter content, never failing
func (g *Generator) Generate(ctx context.Context, req ChapterRequest) models.ChapterContent {
	return g.Run(ctx, req).Content
}

// Run is Generate with the attempt count and whether the fallback was used
func (g *Generator) Run(ctx context.Context, req ChapterRequest) Result {
	logger := g.logger.With("chapter", req.Plan.Caption)

	last, attempts := fold(ctx, MaxIterations, func(acc models.GenerationAttempt, i int) models.GenerationAttempt {
		return g.step(ctx, logger, req, acc, i)
	})

	if last.Succeeded() {
		logger.Info("Chapter content validated", "attempts", attempts)
		g.metrics.RecordContentOutcome(attempts, false)
		return Result{
			Content: models.ChapterContent{
				Code:         last.Candidate,
				KeyTakeaways: keyTakeaways(last.Candidate, req.Plan.ContentPoints),
			},
			Attempts: attempts,
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("Chapter generation cancelled, using fallback", "attempts", attempts, "error", err)
	} else {
		logger.Warn("Chapter content failed validation, using fallback", "attempts", attempts)
	}
	g.metrics.RecordContentOutcome(attempts, true)
	return Result{
		Content:  Fallback(req.Plan, req.Language),
		Attempts: attempts,
		Fallback: true,
	}
}

// fold threads the attempt accumulator through step for indices 0..n-1,
// stopping at the first success or when ctx is done. It returns the last
// attempt and the number of steps taken.
func fold(ctx context.Context, n int, step func(acc models.GenerationAttempt, i int) models.GenerationAttempt) (models.GenerationAttempt, int) {
	acc := models.GenerationAttempt{Iteration: -1}
	taken := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		acc = step(acc, i)
		taken++
		if acc.Succeeded() {
			break
		}
	}
	return acc, taken
}

// step runs a single attempt. Every failure is folded into the returned
// attempt's validation result so the next step can feed it back.
func (g *Generator) step(ctx context.Context, logger *slog.Logger, req ChapterRequest, prev models.GenerationAttempt, i int) models.GenerationAttempt {
	attempt := models.GenerationAttempt{Iteration: i}

	prompt, err := g.prompt(req, prev, i)
	if err != nil {
		logger.Error("Failed to render content prompt", "attempt", i+1, "error", err)
		attempt.Validation = synthetic(RulePromptError, fmt.Sprintf("prompt rendering failed: %v", err))
		g.metrics.RecordValidation(RulePromptError)
		return attempt
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	start := time.Now()
	gen, err := g.model.Generate(callCtx, prompt, nil)
	cancel()
	if err != nil {
		logger.Warn("Content generation call failed",
			"attempt", i+1,
			"duration", time.Since(start),
			"error", err)
		attempt.Validation = synthetic(RuleGenerationError, fmt.Sprintf("generation failed: %v", err))
		g.metrics.IncrementGeneration("content", false)
		g.metrics.RecordValidation(RuleGenerationError)
		return attempt
	}
	g.metrics.IncrementGeneration("content", true)

	candidate, ok := g.extractor.Extract(gen.Text)
	if !ok {
		logger.Debug("No component found in response", "attempt", i+1, "response_length", len(gen.Text))
		attempt.Validation = synthetic(RuleFormatViolation, "format violation")
		g.metrics.RecordValidation(RuleFormatViolation)
		return attempt
	}

	result := g.validator.Validate(candidate)
	attempt.Candidate = candidate
	attempt.Validation = &result
	if result.Valid {
		g.metrics.RecordValidation("valid")
	} else {
		g.metrics.RecordValidation("invalid")
		logger.Debug("Candidate failed validation",
			"attempt", i+1,
			"errors", len(result.Errors),
			"warnings", len(result.Warnings))
	}
	return attempt
}

// prompt builds the full chapter prompt for the first attempt and the
// rewrite prompt, which replaces it entirely, for later ones
func (g *Generator) prompt(req ChapterRequest, prev models.GenerationAttempt, i int) (string, error) {
	if i == 0 || prev.Validation == nil {
		return util.RenderTemplate(g.templates.Content, map[string]interface{}{
			"CourseTitle":            req.CourseTitle,
			"Chapters":               req.Chapters,
			"ChapterCaption":         req.Plan.Caption,
			"TimeMinutes":            req.Plan.TimeMinutes,
			"SubsectionsPerPoint":    SubsectionsPerPoint(req.Plan.TimeMinutes),
			"Points":                 req.Plan.ContentPoints,
			"Difficulty":             string(req.Difficulty),
			"DifficultyInstructions": config.DifficultyInstructions(string(req.Difficulty)),
			"Language":               req.Language.DisplayName(),
			"AllowedIdentifiers":     g.allowed,
			"Context":                req.Context,
		})
	}

	errs, err := json.Marshal(prev.Validation.Errors)
	if err != nil {
		return "", fmt.Errorf("failed to serialize validation errors: %w", err)
	}
	return util.RenderTemplate(g.templates.Retry, map[string]interface{}{
		"PreviousCode":       prev.Candidate,
		"Errors":             string(errs),
		"Language":           req.Language.DisplayName(),
		"AllowedIdentifiers": g.allowed,
	})
}

func synthetic(rule, message string) *models.ValidationResult {
	return &models.ValidationResult{
		Valid:    false,
		Errors:   []models.Diagnostic{{Message: message, RuleCode: rule}},
		Warnings: []models.Diagnostic{},
	}
}

// SubsectionsPerPoint derives the content volume from the chapter's minutes
func SubsectionsPerPoint(minutes int) int {
	switch {
	case minutes < 15:
		return 1
	case minutes < 30:
		return 2
	default:
		return 3
	}
}

var summaryHeading = regexp.MustCompile(`(?i)Key\s*Takeaways?|Summary|Remember`)

// keyTakeaways returns the first content points. The summary section in
// the markup is detected but not parsed: both branches take the plan's points.
func keyTakeaways(code string, points []string) []string {
	if summaryHeading.MatchString(code) {
		return firstPoints(points)
	}
	return firstPoints(points)
}

func firstPoints(points []string) []string {
	n := min(len(points), MaxTakeaways)
	out := make([]string, n)
	copy(out, points[:n])
	return out
}
