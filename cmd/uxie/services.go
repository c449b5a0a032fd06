package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/content"
	"github.com/lamim/uxie/internal/extractor"
	"github.com/lamim/uxie/internal/generator"
	"github.com/lamim/uxie/internal/grading"
	"github.com/lamim/uxie/internal/imagesearch"
	"github.com/lamim/uxie/internal/jsxlint"
	"github.com/lamim/uxie/internal/metrics"
	"github.com/lamim/uxie/internal/orchestrator"
	"github.com/lamim/uxie/internal/retrieval"
	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/internal/store/sqlstore"
	"github.com/lamim/uxie/internal/store/supabase"
)

// services is everything built from the config that generate and serve share
type services struct {
	cfg       *config.Config
	metrics   *metrics.Collector
	generator *generator.Generator
	content   *content.Generator
	validator *jsxlint.Validator
	images    *imagesearch.Searcher
	retriever retrieval.ContextRetriever
	courses   store.PersistenceClient
	grader    *grading.Grader
	closers   []func() error
	logger    *slog.Logger
}

func newServices(ctx context.Context, cfg *config.Config, secrets *config.Secrets, logger *slog.Logger) (*services, error) {
	s := &services{
		cfg:     cfg,
		metrics: metrics.NewCollector(logger),
		logger:  logger,
	}

	apiClient := api.NewClient(logger)
	apiClient.SetMetrics(s.metrics)
	if len(cfg.ProviderRateLimits) > 0 {
		apiClient.SetProviderRateLimits(cfg.ProviderRateLimits, cfg.ProviderBurstPercent)
		logger.Info("Provider rate limits configured", "providers", cfg.ProviderRateLimits, "burst_percent", cfg.ProviderBurstPercent)
	}

	contentModel := cfg.Model(config.ModelContent)
	structuredModel := cfg.Model(config.ModelStructured)
	chatModel := cfg.Model(config.ModelChat)
	callTimeout := time.Duration(cfg.CallTimeout()) * time.Second

	s.validator = jsxlint.New(jsxlint.WithLogger(logger.With("component", "jsxlint")))
	s.content = content.New(
		api.NewModelGenerator(apiClient, contentModel, secrets.GetAPIKey(contentModel.BaseURL), cfg.PromptTemplates.ContentSystemPrompt),
		extractor.New(),
		s.validator,
		logger,
		content.WithTemplates(content.Templates{
			Content: cfg.PromptTemplates.ContentGeneration,
			Retry:   cfg.PromptTemplates.ContentRetry,
		}),
		content.WithCallTimeout(callTimeout),
		content.WithAllowedIdentifiers(jsxlint.AllowedIdentifiers()),
		content.WithMetrics(s.metrics),
	)

	structured := api.NewModelGenerator(apiClient, structuredModel, secrets.GetAPIKey(structuredModel.BaseURL), "")
	s.generator = generator.New(
		structured,
		api.NewModelGenerator(apiClient, chatModel, secrets.GetAPIKey(chatModel.BaseURL), ""),
		logger,
		generator.WithTemplates(generator.Templates{
			Quiz:       cfg.PromptTemplates.QuizGeneration,
			Plan:       cfg.PromptTemplates.PlanGeneration,
			Info:       cfg.PromptTemplates.InfoGeneration,
			ChatSystem: cfg.PromptTemplates.ChatSystemPrompt,
		}),
		generator.WithCallTimeout(callTimeout),
		generator.WithMetrics(s.metrics),
	)

	s.images = newImageSearcher(cfg.Images, secrets, logger)

	var err error
	if s.retriever, err = s.newRetriever(ctx, apiClient, secrets); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	if s.courses, err = s.newPersistence(ctx, secrets); err != nil {
		return nil, errors.Join(err, s.Close())
	}

	s.grader = grading.New(structured, s.courses, logger,
		grading.WithTemplate(cfg.PromptTemplates.GradingGeneration),
		grading.WithCallTimeout(callTimeout),
		grading.WithMetrics(s.metrics),
	)
	return s, nil
}

func newImageSearcher(cfg config.ImagesConfig, secrets *config.Secrets, logger *slog.Logger) *imagesearch.Searcher {
	accessKey := secrets.UnsplashKey
	if cfg.Provider == "placeholder" {
		accessKey = ""
	} else if accessKey == "" {
		logger.Warn("UNSPLASH_ACCESS_KEY not set, using placeholder images")
	}
	return imagesearch.New(accessKey, logger,
		imagesearch.WithBaseURL(cfg.BaseURL),
		imagesearch.WithPlaceholderBaseURL(cfg.PlaceholderBaseURL),
		imagesearch.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second}),
	)
}

func (s *services) newRetriever(ctx context.Context, apiClient *api.Client, secrets *config.Secrets) (retrieval.ContextRetriever, error) {
	if !s.cfg.Retrieval.Enabled {
		return retrieval.NopRetriever{}, nil
	}
	dsn := s.cfg.RetrievalDSN(secrets)
	if dsn == "" {
		return nil, fmt.Errorf("retrieval is enabled but neither retrieval.dsn nor DATABASE_URL is set")
	}
	pool, err := retrieval.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error {
		pool.Close()
		return nil
	})

	embeddingModel := s.cfg.Models[config.ModelEmbedding]
	embedder := api.NewModelEmbedder(apiClient, embeddingModel, secrets.GetAPIKey(embeddingModel.BaseURL))
	s.logger.Info("Context retrieval enabled", "table", s.cfg.Retrieval.Table, "top_k", s.cfg.Retrieval.TopK)
	return retrieval.New(pool, embedder, s.cfg.Retrieval.Table, s.logger), nil
}

func (s *services) newPersistence(ctx context.Context, secrets *config.Secrets) (store.PersistenceClient, error) {
	pc := s.cfg.Persistence
	switch pc.Backend {
	case "supabase":
		if secrets.SupabaseKey == "" {
			return nil, fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY must be set for persistence.backend=supabase")
		}
		s.logger.Info("Persistence configured", "backend", pc.Backend, "url", pc.SupabaseURL)
		return supabase.New(pc.SupabaseURL, secrets.SupabaseKey, s.logger,
			supabase.WithTimeout(time.Duration(pc.HTTPTimeoutSeconds)*time.Second),
			supabase.WithMaxRetries(pc.MaxRetries),
		), nil
	case "postgres", "sqlite":
		dsn := s.cfg.PersistenceDSN(secrets)
		if dsn == "" {
			return nil, fmt.Errorf("persistence.backend=%s requires persistence.dsn or DATABASE_URL", pc.Backend)
		}
		db, err := sqlstore.Open(pc.Backend, dsn, s.logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if pc.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		s.logger.Info("Persistence configured", "backend", pc.Backend, "auto_migrate", pc.AutoMigrate)
		return db, nil
	default:
		return store.Nop{}, nil
	}
}

// orchestrator wires a course pipeline over the shared services
func (s *services) orchestrator(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	base := []orchestrator.Option{
		orchestrator.WithChapterConcurrency(s.cfg.Generation.ChapterConcurrency),
		orchestrator.WithRetrieval(s.cfg.Retrieval.TopK, s.cfg.Retrieval.SimilarityThreshold),
		orchestrator.WithMetrics(s.metrics),
	}
	return orchestrator.New(orchestrator.Deps{
		Planner:   s.generator,
		Content:   s.content,
		Quiz:      s.generator,
		Images:    s.images,
		Retriever: s.retriever,
		Store:     s.courses,
	}, s.logger, append(base, opts...)...)
}

// Close releases database pools in reverse order of creation
func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
