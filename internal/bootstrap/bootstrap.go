// Package bootstrap provides dependency initialization for the clipforge
// pipeline.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/avalls/clipforge/internal/compose"
	"github.com/avalls/clipforge/internal/config"
	"github.com/avalls/clipforge/internal/fetch"
	"github.com/avalls/clipforge/internal/frame"
	"github.com/avalls/clipforge/internal/generator"
	"github.com/avalls/clipforge/internal/media"
	"github.com/avalls/clipforge/internal/moondream"
	"github.com/avalls/clipforge/internal/pipeline"
	"github.com/avalls/clipforge/internal/replicate"
	"github.com/avalls/clipforge/internal/storage"
)

// Dependencies holds all initialized dependencies for the batch runner.
type Dependencies struct {
	Pipeline *pipeline.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize inference clients
	moondreamClient, err := moondream.NewClient(moondream.WithAPIKey(cfg.MoondreamAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create Moondream client: %w", err)
	}
	replicateClient, err := replicate.NewClient(replicate.WithToken(cfg.ReplicateAPIToken))
	if err != nil {
		return nil, fmt.Errorf("create Replicate client: %w", err)
	}

	// Initialize media tooling
	runner := media.NewRunner(cfg.FFmpegPath, cfg.FFprobePath)
	extractor := frame.NewExtractor(runner, logger)
	compositor := compose.NewCompositor(runner, store, logger,
		compose.WithFrameRate(cfg.TargetFrameRate),
	)

	// Initialize generation adapters
	describer := generator.NewMoondreamDescriber(moondreamClient)
	videoGen := generator.NewMinimaxVideoGenerator(replicateClient, cfg.PollInterval, logger)
	audioGen := generator.NewMMAudioGenerator(replicateClient, cfg.PollInterval, cfg.AudioSeed, logger)

	// Initialize artifact downloader and run repository
	downloader := fetch.NewDownloader(store)
	repo := pipeline.NewMemoryRepository()

	svc := pipeline.NewService(
		repo,
		extractor,
		describer,
		videoGen,
		audioGen,
		compositor,
		downloader,
		store,
		cfg.InputDir,
		cfg.OutputDir,
		logger,
		pipeline.WithAudioDuration(cfg.AudioDurationSec),
		pipeline.WithS3Upload(cfg.S3Enabled()),
		pipeline.WithGenerationTimeout(cfg.GenerationTimeout),
	)

	return &Dependencies{
		Pipeline: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
