package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finanse/internal/backend"
	"finanse/internal/cache"
	"finanse/internal/cli"
	apphttp "finanse/internal/http"
	applog "finanse/internal/log"
	"finanse/internal/middleware/ratelimit"
)

func main() {
	cfg, logger := cli.Bootstrap("finanse", os.Stdout)
	logger.Info("Starting finanse server", "port", cfg.Port, "backend", cfg.DataBackend)

	res := cli.MustOpenBackend(context.Background(), logger.Logger, cfg)

	app, err := cli.NewServices(cfg, res)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	caches := cache.NewManager()
	caches.Register(app.Report.Cache())
	caches.StartCleanup(10 * time.Minute)

	deps := apphttp.Deps{
		Report:     app.Report,
		Merge:      app.Merge,
		Milestones: app.Milestones,
		Logger:     logger.WithComponent(applog.ComponentHTTP),
		RateLimit:  ratelimit.DefaultConfig(),
	}
	if p, ok := res.Backend.(backend.Pinger); ok {
		deps.Backend = p
	}
	if res.Publisher != nil {
		deps.Queue = res.Publisher
		logger.Info("Merges are queued for finanse-worker")
	} else {
		logger.Info("AMQP disabled - merges are applied synchronously")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
