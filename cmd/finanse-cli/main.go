package main

import (
	"context"
	"flag"
	"os"

	"finanse/internal/cli"

	"github.com/google/subcommands"
)

func main() {
	plain := flag.Bool("plain", false, "print raw markdown instead of rendering it")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	app := &cli.App{Out: os.Stdout, Err: os.Stderr}
	cli.Register(subcommands.DefaultCommander, app)

	flag.Parse()
	app.Plain = *plain

	cfg, logger := cli.Bootstrap("finanse-cli", os.Stderr)
	ctx := context.Background()

	res := cli.MustOpenBackend(ctx, logger.Logger, cfg)
	svcs, err := cli.NewServices(cfg, res)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	app.Report, app.Merge, app.Milestones = svcs.Report, svcs.Merge, svcs.Milestones

	status := subcommands.Execute(ctx)
	if res.Cleanup != nil {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}
	os.Exit(int(status))
}
