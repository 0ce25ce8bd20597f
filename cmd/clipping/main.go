package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"LegislativeClipping/internal/app"
	"LegislativeClipping/internal/config"
	"LegislativeClipping/internal/logging"
)

const usage = "usage: clipping [run|rescore|serve|schedule]"

func main() {
	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg := config.Load()
	logger, logFile, err := logging.NewWithFile(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		logger.Warn("cannot open log file, logging to stdout only", "path", cfg.Logging.File, "error", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, cfg, logger); err != nil {
		logger.Error("application stopped", "command", command, "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg config.Config, logger *slog.Logger) error {
	switch command {
	case "run", "rescore", "serve", "schedule":
	default:
		return fmt.Errorf("unknown command %q: %s", command, usage)
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	switch command {
	case "rescore":
		_, err := application.Rescore(ctx)
		return err
	case "serve":
		return application.Serve(ctx)
	case "schedule":
		return application.Schedule(ctx)
	default:
		_, err := application.Run(ctx)
		return err
	}
}
