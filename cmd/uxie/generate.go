package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lamim/uxie/internal/checkpoint"
	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/orchestrator"
	"github.com/lamim/uxie/internal/tracing"
	"github.com/lamim/uxie/internal/writer"
	"github.com/lamim/uxie/pkg/models"
)

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	req := models.CourseRequest{
		Query:       courseQuery,
		TimeHours:   courseHours,
		Difficulty:  models.Difficulty(courseDifficulty),
		Language:    models.Language(courseLanguage),
		DocumentIDs: courseDocuments,
		CourseID:    courseID,
	}
	if req.Difficulty == "" {
		req.Difficulty = cfg.Generation.DefaultDifficulty
	}
	if req.Language == "" {
		req.Language = cfg.Generation.DefaultLanguage
	}
	if err := config.ValidateQuery(req.Query); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid course request: %w", err)
	}

	return runGeneration(cfg, secrets, &req)
}

// runGeneration runs one course into a session directory. A nil req resumes
// the session named by cfg.Generation.ResumeFromSession with its saved request.
func runGeneration(cfg *config.Config, secrets *config.Secrets, req *models.CourseRequest) error {
	resumeMode := cfg.Generation.ResumeFromSession != ""

	sessionMgr, err := writer.NewSessionManager(cfg.Generation.OutputDir, cfg.Generation.ResumeFromSession, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(sessionMgr, os.Stdout, writer.LogLevel(verbose))
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	}()

	courseWriter := writer.NewCourseWriter(sessionMgr, logger)
	if req == nil {
		saved, err := writer.LoadRequest(sessionMgr.GetSessionDir())
		if err != nil {
			return fmt.Errorf("failed to load session request: %w", err)
		}
		req = &saved
	} else if !resumeMode {
		if err := courseWriter.SaveRequest(*req); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
	}

	logger.Info("Uxie starting",
		"version", Version,
		"query", req.Query,
		"hours", req.TimeHours,
		"session_dir", sessionMgr.GetSessionDir(),
		"resume_mode", resumeMode)

	if !resumeMode {
		if err := sessionMgr.BackupConfig(configPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		traceFile, err := os.OpenFile(sessionMgr.GetTracePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		defer traceFile.Close()
		shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, traceFile, logger)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("Failed to flush traces", "error", err)
			}
		}()
	}

	svc, err := newServices(ctx, cfg, secrets, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close services", "error", err)
		}
	}()

	var opts []orchestrator.Option
	if cfg.Generation.EnableCheckpointing || resumeMode {
		var checkpointMgr *checkpoint.Manager
		if resumeMode {
			existing, err := checkpoint.Load(sessionMgr.GetSessionDir(), logger)
			if err != nil {
				return fmt.Errorf("failed to load checkpoint: %w", err)
			}
			if err := checkpoint.ValidateCheckpoint(existing, *req); err != nil {
				return fmt.Errorf("checkpoint validation failed: %w", err)
			}
			checkpointMgr = checkpoint.NewManagerFromCheckpoint(sessionMgr.GetSessionDir(), existing, true, logger)
			logger.Info("Loaded checkpoint",
				"phase", existing.CurrentPhase,
				"completed_chapters", checkpoint.GetCompletedCount(existing),
				"progress", fmt.Sprintf("%.1f%%", checkpoint.GetProgressPercentage(existing)))
		} else {
			checkpointMgr = checkpoint.NewManager(sessionMgr.GetSessionDir(), *req, true, logger)
		}
		defer func() {
			if err := checkpointMgr.Close(); err != nil {
				logger.Error("Failed to close checkpoint manager", "error", err)
			}
		}()
		opts = append(opts, orchestrator.WithCheckpoint(checkpointMgr, resumeMode))
	}

	orch := svc.orchestrator(opts...)

	bar := progressbar.Default(100, "Generating course")
	outcome, err := orch.RunWithProgress(ctx, *req, func(ev models.ProgressEvent) {
		bar.Describe(ev.Message)
		_ = bar.Set(ev.Percent)
	})
	_ = bar.Finish()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			sessionDir := filepath.Base(sessionMgr.GetSessionDir())
			logger.Warn("Generation interrupted - resume from checkpoint",
				"session_dir", sessionDir,
				"resume_command", "uxie checkpoint resume "+sessionDir)
			return fmt.Errorf("generation interrupted (resume with: uxie checkpoint resume %s)", sessionDir)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	doc := writer.CourseDocument{
		Course:  outcome.Course,
		Request: *req,
		Stats:   outcome.Stats,
	}
	if outcome.PersistErr != nil {
		doc.PersistErr = outcome.PersistErr.Error()
		logger.Warn("Course generated but not persisted", "error", outcome.PersistErr)
	}
	if _, err := courseWriter.WriteCourse(doc); err != nil {
		return fmt.Errorf("failed to write course: %w", err)
	}

	logger.Info("Generation complete",
		"title", outcome.Course.Info.Title,
		"chapters", outcome.Stats.TotalChapters,
		"fallback_chapters", outcome.Stats.FallbackChapters,
		"quiz_failures", outcome.Stats.QuizFailures,
		"duration", outcome.Stats.TotalDuration,
		"session_dir", sessionMgr.GetSessionDir())
	return nil
}
