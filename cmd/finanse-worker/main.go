package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finanse/internal/cli"
	"finanse/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap("finanse-worker", os.Stdout)
	logger.Info("Starting finanse-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the merge worker")
		os.Exit(1)
	}

	res := cli.MustOpenBackend(context.Background(), logger.Logger, cfg)
	if res.Publisher == nil {
		logger.Error("Merge queue unavailable, check the AMQP broker")
		os.Exit(1)
	}
	defer func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	app, err := cli.NewServices(cfg, res)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	mergeWorker := worker.NewMergeWorker(app.Merge, res.Publisher, cfg.MergeMaxAttempts)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	logger.Info("Consuming merge messages",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"max_attempts", cfg.MergeMaxAttempts)
	if err := res.Publisher.Consume(ctx, mergeWorker.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
