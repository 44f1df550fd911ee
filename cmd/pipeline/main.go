// Sentinel pipeline entry point
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rkm/sentinel-pipeline/internal/config"
	"github.com/rkm/sentinel-pipeline/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Variables already set in the environment take precedence over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return pipeline.ExitConfig
	}

	runID := uuid.NewString()
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format).With(slog.String("run_id", runID))

	aoi, _ := cfg.Search.AOI()
	logger.Info("starting Sentinel pipeline",
		"aoi", aoi,
		"start", cfg.Search.Start,
		"end", cfg.Search.End,
		"data_dir", cfg.Storage.DataDir,
		"output_dir", cfg.Storage.OutputDir,
		"publish", cfg.Publish.Enabled(),
	)

	driver, err := pipeline.New(cfg, logger, runID)
	if err != nil {
		logger.Error("failed to set up pipeline", "error", err)
		return pipeline.ExitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := driver.Run(ctx)
	if err != nil {
		code := pipeline.ExitCode(err)
		logger.Error("pipeline failed", "error", err, "exit_code", code)
		return code
	}

	logger.Info("pipeline finished",
		"pair", report.Pair,
		"files", len(report.Files),
		"published", report.Published,
		"duration", report.Duration,
	)
	return pipeline.ExitOK
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
