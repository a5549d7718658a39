// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrMoondreamKeyRequired is returned when MOONDREAM_API_KEY is not set.
	ErrMoondreamKeyRequired = errors.New("config: MOONDREAM_API_KEY is required")
	// ErrReplicateTokenRequired is returned when REPLICATE_API_TOKEN is not set.
	ErrReplicateTokenRequired = errors.New("config: REPLICATE_API_TOKEN is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Inference service credentials
	MoondreamAPIKey   string `env:"MOONDREAM_API_KEY, required" json:"-"`   // Masked in JSON
	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN, required" json:"-"` // Masked in JSON

	// Directory layout
	InputDir  string `env:"INPUT_DIR, default=input" json:"input_dir" validate:"required"`
	OutputDir string `env:"OUTPUT_DIR, default=output" json:"output_dir" validate:"required"`
	TempDir   string `env:"TEMP_DIR, default=temp" json:"temp_dir" validate:"required"`

	// External tool paths (resolved via PATH when empty)
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// Generation settings
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT, default=15m" json:"generation_timeout"`
	PollInterval      time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	AudioDurationSec  int           `env:"AUDIO_DURATION_SEC, default=8" json:"audio_duration_sec" validate:"min=1,max=30"`
	AudioSeed         int           `env:"AUDIO_SEED, default=-1" json:"audio_seed"`
	TargetFrameRate   int           `env:"TARGET_FRAME_RATE, default=30" json:"target_frame_rate" validate:"min=1,max=120"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "MOONDREAM_API_KEY") {
			return nil, ErrMoondreamKeyRequired
		}
		if strings.Contains(err.Error(), "REPLICATE_API_TOKEN") {
			return nil, ErrReplicateTokenRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and within
// range. Fails fast at startup rather than mid-batch.
func (c *Config) Validate() error {
	if c.MoondreamAPIKey == "" {
		return ErrMoondreamKeyRequired
	}
	if c.ReplicateAPIToken == "" {
		return ErrReplicateTokenRequired
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{InputDir: %s, OutputDir: %s, TempDir: %s, GenerationTimeout: %s, PollInterval: %s, AudioDurationSec: %d, TargetFrameRate: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.InputDir,
		c.OutputDir,
		c.TempDir,
		c.GenerationTimeout,
		c.PollInterval,
		c.AudioDurationSec,
		c.TargetFrameRate,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
