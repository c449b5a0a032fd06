// Package server exposes course creation, grading and chat over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/generator"
	"github.com/lamim/uxie/internal/grading"
	"github.com/lamim/uxie/internal/orchestrator"
	"github.com/lamim/uxie/internal/runs"
	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/internal/tracing"
	"github.com/lamim/uxie/pkg/models"
)

// CourseRunner generates a course with progress reporting
type CourseRunner interface {
	RunWithProgress(ctx context.Context, req models.CourseRequest, onProgress func(models.ProgressEvent)) (orchestrator.Outcome, error)
}

// Grader scores open-text answers
type Grader interface {
	Grade(ctx context.Context, req grading.GradeRequest) (models.Grading, error)
}

// Chatter answers tutor chat turns
type Chatter interface {
	ChatStream(ctx context.Context, req generator.ChatRequest, onDelta func(string)) (string, error)
}

// SnippetValidator checks a candidate component
type SnippetValidator interface {
	Validate(candidate string) models.ValidationResult
}

// Deps are the services behind the HTTP routes
type Deps struct {
	Runner    CourseRunner
	Runs      *runs.Registry
	Grader    Grader
	Chat      Chatter
	Validator SnippetValidator
	Courses   store.PersistenceClient
}

// Server is the HTTP host for the course pipeline
type Server struct {
	cfg          config.ServerConfig
	deps         Deps
	defaults     models.CourseRequest
	pollInterval time.Duration
	engine       *gin.Engine
	logger       *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithRequestDefaults fills difficulty and language when a start request omits them
func WithRequestDefaults(difficulty models.Difficulty, lang models.Language) Option {
	return func(s *Server) {
		s.defaults.Difficulty = difficulty
		s.defaults.Language = lang
	}
}

// WithPollInterval sets how often run streams check for new progress
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pollInterval = d
	}
}

// New creates a server and registers its routes
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger, opts ...Option) *Server {
	if deps.Courses == nil {
		deps.Courses = store.Nop{}
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		defaults: models.CourseRequest{
			Difficulty: models.DifficultyMedium,
			Language:   models.LanguageEnglish,
		},
		pollInterval: 500 * time.Millisecond,
		logger:       logger.With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(s.recovery))
	r.Use(requestLogger(s.logger))
	r.Use(cors.New(corsConfig(s.cfg.AllowOrigins)))
	r.Use(tracing.Middleware())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		workflow := api.Group("/workflows/course-creation")
		workflow.POST("/create-run", s.createRun)
		workflow.POST("/start", s.startRun)
		workflow.GET("/runs/:runId", s.getRun)
		workflow.GET("/runs/:runId/stream", s.streamRun)

		api.POST("/grade", s.grade)
		api.POST("/chat", s.chat)
		api.POST("/chat/stream", s.chatStream)
		api.POST("/validate", s.validate)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// ListenAndServe serves until ctx is cancelled, then stops accepting
// requests, suspends in-flight runs and waits for handlers to finish
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.logger.Info("Shutting down server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	if s.deps.Runs != nil {
		if err := s.deps.Runs.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	s.logger.Info("Server exited")
	return errors.Join(errs...)
}

func (s *Server) recovery(c *gin.Context, err any) {
	s.logger.Error("Handler panicked", "path", c.Request.URL.Path, "panic", err)
	abort(c, http.StatusInternalServerError, "internal server error")
}

// requestLogger logs one line per request
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			logger.Error("Request failed", attrs...)
		case status >= 400:
			logger.Warn("Request rejected", attrs...)
		default:
			logger.Debug("Request served", attrs...)
		}
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
