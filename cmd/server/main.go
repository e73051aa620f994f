// Package main is the entrypoint for the cluster portal API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/clusterportal/internal/api"
	"github.com/kiranshivaraju/clusterportal/internal/api/handler"
	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/api/response"
	"github.com/kiranshivaraju/clusterportal/internal/cache"
	"github.com/kiranshivaraju/clusterportal/internal/config"
	"github.com/kiranshivaraju/clusterportal/internal/jobs"
	"github.com/kiranshivaraju/clusterportal/internal/portal"
	"github.com/kiranshivaraju/clusterportal/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "jobs_api", cfg.Jobs.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Job system client and portal views
	jobsClient := jobs.NewHTTPClient(cfg.Jobs.BaseURL, cfg.Jobs.Timeout)
	links := portal.LinkBuilder{
		WebportalBaseURL: cfg.Links.WebportalBaseURL,
		GrafanaURL:       cfg.Links.GrafanaURL,
	}
	views := portal.NewService(jobsClient, redisCache, links, cfg.Jobs.CacheTTL)

	// 6. Create store
	pgStore := store.NewPostgresStore(pool)

	// 7. Build router with dependencies
	users := handler.NewUserController(pgStore)
	jobsHandler := handler.NewJobsHandler(views)
	tokens := handler.NewTokensHandler(pgStore)
	watch := handler.NewWatchHandler(views)

	deps := api.Dependencies{
		Auth:         mw.NewAuth(pgStore, cfg.Auth.JWTSecret),
		RateLimit:    mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),
		RegisterUser: users.CreateUserIfUserNotExist,

		HealthHandler: healthHandler(pgStore, redisCache, jobsClient),

		GetUser: users.GetUser,
		GetSelf: users.GetSelf,

		JobStatus:  jobsHandler.Status,
		JobSummary: jobsHandler.Summary,
		JobConfig:  jobsHandler.Config,
		StopJob:    jobsHandler.Stop,
		WatchJob:   watch.Watch,

		CreateKeyHandler: tokens.Create,
		ListKeysHandler:  tokens.List,
		RevokeKeyHandler: tokens.Revoke,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. No write timeout: watch sessions are long lived
	// and set their own per-message write deadlines.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(watch.Close)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database, cache and job system connectivity.
func healthHandler(s store.Store, c cache.Cache, j jobs.Client) http.HandlerFunc {
	probes := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.Ping},
		{"cache", c.Ping},
		{"jobs", j.Ready},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(probes))
		degraded := false
		for _, p := range probes {
			checks[p.name] = "ok"
			if err := p.ping(r.Context()); err != nil {
				slog.Warn("health check failed", "service", p.name, "error", err)
				checks[p.name] = "degraded"
				degraded = true
			}
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
