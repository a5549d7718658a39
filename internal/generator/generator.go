// Package generator defines the ports for the remote inference services the
// pipeline depends on: scene description, video generation, and ambient audio
// generation. Adapters translate these ports onto the Moondream and Replicate
// clients.
package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avalls/clipforge/internal/replicate"
)

// Static errors for generation operations.
var (
	// ErrGenerationTimeout is returned when a generation does not reach a
	// terminal state before its deadline.
	ErrGenerationTimeout = errors.New("generator: generation timed out")
	// ErrGenerationFailed is returned when the provider reports a failed or
	// cancelled generation.
	ErrGenerationFailed = errors.New("generator: generation failed")
)

// Describer produces a natural-language scenario from a still image.
type Describer interface {
	Describe(ctx context.Context, imagePath string) (scenario string, err error)
}

// VideoGenerator produces a short video clip from a scenario and a reference
// still image, returning a URL to the generated artifact.
type VideoGenerator interface {
	Generate(ctx context.Context, scenario, imagePath string) (videoURL string, err error)
}

// AudioGenerator produces an ambient audio track for a generated video,
// returning a URL to the generated artifact.
type AudioGenerator interface {
	Generate(ctx context.Context, videoURL string, durationSec int) (audioURL string, err error)
}

// imageDataURI reads an image file and encodes it as a base64 data URI
// suitable for inline submission to inference APIs.
func imageDataURI(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is produced by the pipeline, not user input
	if err != nil {
		return "", fmt.Errorf("generator: read image: %w", err)
	}

	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

// awaitPrediction polls a prediction until it reaches a terminal state,
// logging progress on every poll so long-running generations stay observable.
// The context deadline bounds the wait; hitting it yields ErrGenerationTimeout.
func awaitPrediction(ctx context.Context, client replicate.Client, id string, interval time.Duration, logger *slog.Logger) (replicate.Prediction, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return replicate.Prediction{}, fmt.Errorf("%w: prediction %s: %w", ErrGenerationTimeout, id, ctx.Err())
			}
			return replicate.Prediction{}, fmt.Errorf("generator: wait cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		pred, err := client.GetPrediction(ctx, id)
		if err != nil {
			return replicate.Prediction{}, err
		}

		logger.Debug("prediction progress",
			slog.String("prediction_id", id),
			slog.String("status", string(pred.Status)),
		)

		if !pred.Status.IsTerminal() {
			continue
		}

		if pred.Status != replicate.StatusSucceeded {
			return pred, fmt.Errorf("%w: prediction %s ended %s: %s", ErrGenerationFailed, id, pred.Status, pred.Error)
		}
		return pred, nil
	}
}
