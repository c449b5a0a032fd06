// Package generator holds the single-call structured generators: quiz,
// course plan, course info and the course tutor chat.
package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/metrics"
)

// Templates holds the prompt templates used by the generators
type Templates struct {
	Quiz       string
	Plan       string
	Info       string
	ChatSystem string
}

// DefaultTemplates returns the built-in prompts
func DefaultTemplates() Templates {
	return Templates{
		Quiz:       config.GetDefaultQuizTemplate(),
		Plan:       config.GetDefaultPlanTemplate(),
		Info:       config.GetDefaultInfoTemplate(),
		ChatSystem: config.GetDefaultChatSystemPrompt(),
	}
}

// Generator makes one model call per operation. None of them retry.
type Generator struct {
	model       api.TextGenerator
	chat        api.ChatModel
	templates   Templates
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// Option configures a Generator
type Option func(*Generator)

// WithTemplates overrides the prompt templates; empty fields keep the defaults
func WithTemplates(t Templates) Option {
	return func(g *Generator) {
		if t.Quiz != "" {
			g.templates.Quiz = t.Quiz
		}
		if t.Plan != "" {
			g.templates.Plan = t.Plan
		}
		if t.Info != "" {
			g.templates.Info = t.Info
		}
		if t.ChatSystem != "" {
			g.templates.ChatSystem = t.ChatSystem
		}
	}
}

// WithCallTimeout sets the deadline for each model call
func WithCallTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.callTimeout = d
	}
}

// WithMetrics records per-generator success counts
func WithMetrics(m *metrics.Collector) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// New creates a Generator. chat may be nil when the tutor chat is unused.
func New(model api.TextGenerator, chat api.ChatModel, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		model:       model,
		chat:        chat,
		templates:   DefaultTemplates(),
		callTimeout: 120 * time.Second,
		logger:      logger.With("component", "generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) generate(ctx context.Context, name, prompt string, schema *api.Schema) (*api.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	start := time.Now()
	gen, err := g.model.Generate(ctx, prompt, schema)
	g.metrics.IncrementGeneration(name, err == nil)
	if err != nil {
		g.logger.Warn("Generation call failed", "generator", name, "duration", time.Since(start), "error", err)
		return nil, err
	}
	g.logger.Debug("Generation call finished", "generator", name, "duration", time.Since(start))
	return gen, nil
}
