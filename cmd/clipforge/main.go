// Package main provides the entry point for the clipforge batch pipeline.
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

	"github.com/avalls/clipforge/internal/bootstrap"
	"github.com/avalls/clipforge/internal/config"
)

// errNoVideosProcessed makes the process exit non-zero when the batch
// produced no successful output.
var errNoVideosProcessed = errors.New("no videos were processed successfully")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting clipforge",
		slog.String("input_dir", cfg.InputDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("generation_timeout", cfg.GenerationTimeout.String()),
		slog.Int("audio_duration_sec", cfg.AudioDurationSec),
		slog.Int("target_frame_rate", cfg.TargetFrameRate),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
	)

	// Make sure the input directory exists before wiring anything up
	if err := os.MkdirAll(cfg.InputDir, 0750); err != nil {
		return fmt.Errorf("create input directory: %w", err)
	}

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Abort cleanly between stages on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := deps.Pipeline.ProcessAll(ctx)
	if err != nil {
		return fmt.Errorf("process input folder: %w", err)
	}

	succeeded := 0
	for _, result := range results {
		name := filepath.Base(result.SourcePath)
		if result.Succeeded() {
			succeeded++
			fmt.Printf("\nResults for %s:\n", name)
			fmt.Printf("Log file: %s\n", result.LogPath)
			fmt.Printf("Final video: %s\n", result.FinalPath)
			if result.FinalURL != "" {
				fmt.Printf("Final video URL: %s\n", result.FinalURL)
			}
		} else {
			fmt.Printf("\n%s failed at stage %s: %s\n", name, result.FailedStage, result.Error)
		}
	}

	if succeeded == 0 {
		return errNoVideosProcessed
	}

	fmt.Printf("\nProcessing completed: %d/%d videos succeeded\n", succeeded, len(results))
	return nil
}
