package main

import (
	"context"
	"flag"
	"os"
	"time"

	"finanse/internal/cli"
	"finanse/internal/services"
)

func main() {
	once := flag.Bool("once", false, "take a snapshot if one is due, then exit")
	flag.Parse()

	cfg, logger := cli.Bootstrap("snapshot-worker", os.Stdout)
	logger.Info("Starting snapshot-worker")

	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend snapshots are lost on exit")
	}

	res := cli.MustOpenBackend(context.Background(), logger.Logger, cfg)
	defer func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	rates, err := cfg.Rates()
	if err != nil {
		logger.Error("Invalid exchange rates", "error", err)
		return
	}
	schedule, err := services.ParseSchedule(cfg.SnapshotEvery)
	if err != nil {
		logger.Error("Invalid snapshot schedule", "error", err)
		return
	}

	processor, err := services.NewSnapshotProcessor(res.Backend, rates, services.SnapshotProcessorConfig{
		Schedule:     schedule,
		AnchorDay:    cfg.SnapshotDay,
		PollInterval: cfg.SnapshotInterval,
	})
	if err != nil {
		logger.Error("Failed to create snapshot processor", "error", err)
		return
	}

	if *once {
		n, err := processor.ProcessDue(context.Background(), time.Now())
		if err != nil {
			logger.Error("Snapshot failed", "error", err)
			return
		}
		logger.Info("Snapshot check complete", "records_written", n)
		return
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Error stopping snapshot processor", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start snapshot processor", "error", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Snapshot worker stopped gracefully")
}
