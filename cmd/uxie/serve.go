package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/runs"
	"github.com/lamim/uxie/internal/server"
	"github.com/lamim/uxie/internal/tracing"
	"github.com/lamim/uxie/internal/writer"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	logger := writer.NewConsoleLogger(os.Stdout, writer.LogLevel(verbose))
	logger.Info("Uxie server starting", "version", Version, "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, os.Stderr, logger)
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

	svc, err := newServices(ctx, cfg, secrets, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close services", "error", err)
		}
	}()

	runStore, closeStore, err := newRunStore(ctx, cfg.Server, secrets)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("Run store configured", "backend", cfg.Server.RunStore)

	srv := server.New(cfg.Server, server.Deps{
		Runner:    svc.orchestrator(),
		Runs:      runs.NewRegistry(runStore, logger),
		Grader:    svc.grader,
		Chat:      svc.generator,
		Validator: svc.validator,
		Courses:   svc.courses,
	}, logger, server.WithRequestDefaults(cfg.Generation.DefaultDifficulty, cfg.Generation.DefaultLanguage))

	return srv.ListenAndServe(ctx)
}

func newRunStore(ctx context.Context, cfg config.ServerConfig, secrets *config.Secrets) (runs.Store, func(), error) {
	if cfg.RunStore != "redis" {
		return runs.NewMemoryStore(), func() {}, nil
	}
	addr := cfg.RedisAddr
	if addr == "" {
		addr = secrets.RedisAddr
	}
	if addr == "" {
		return nil, nil, fmt.Errorf("server.run_store=redis requires server.redis_addr or REDIS_ADDR")
	}
	rdb, err := runs.ConnectRedis(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	ttl := time.Duration(cfg.RunTTLMinutes) * time.Minute
	return runs.NewRedisStore(rdb, ttl), func() { _ = rdb.Close() }, nil
}
