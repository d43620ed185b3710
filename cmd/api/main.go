// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the emoji-auth HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to Redis.
//  4. Connect to PostgreSQL and run migrations (postgres backend only).
//  5. Build the identity repository for the selected backend.
//  6. Wire the auth service, metrics, and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/emoji-auth/internal/api"
	"github.com/taibuivan/emoji-auth/internal/auth"
	"github.com/taibuivan/emoji-auth/internal/platform/config"
	"github.com/taibuivan/emoji-auth/internal/platform/constants"
	"github.com/taibuivan/emoji-auth/internal/platform/metrics"
	"github.com/taibuivan/emoji-auth/internal/platform/migration"
	pgstore "github.com/taibuivan/emoji-auth/internal/platform/postgres"
	redisstore "github.com/taibuivan/emoji-auth/internal/platform/redis"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", cfg.StoreBackend),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Lives as long as the process; cancels background loops on shutdown.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// ── 3. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	checks := []api.HealthCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
	}}

	// ── 4. Identity Store ─────────────────────────────────────────────────
	var repository auth.Repository
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.DefaultPoolOptions(), log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}()

		checks = append(checks, api.HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		})
		repository = auth.NewPostgresRepository(pool)
	default:
		repository = auth.NewRedisRepository(rdb)
	}

	// ── 5. Security ───────────────────────────────────────────────────────
	hasher, err := sec.NewPasswordHasher(cfg.BcryptCost)
	must(log, err, "initialize password hasher")

	tokens, err := sec.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	must(log, err, "initialize token service")

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	recorder := metrics.NewRecorder()
	lifecycle := auth.NewLifecycle(repository, hasher)
	authService := auth.NewService(lifecycle, tokens, recorder)
	liveness, readiness := api.NewHealthHandlers(log, checks...)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(runCtx, cfg, log, tokens, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Metrics:   recorder.Handler(),
	})

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	runCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
