package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avalls/clipforge/internal/replicate"
)

// Minimax video-01 model coordinates on Replicate.
const (
	minimaxOwner = "minimax"
	minimaxModel = "video-01"
)

// MinimaxVideoGenerator adapts the Replicate client to the VideoGenerator
// port using the minimax/video-01 model.
type MinimaxVideoGenerator struct {
	client       replicate.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewMinimaxVideoGenerator creates a new MinimaxVideoGenerator.
func NewMinimaxVideoGenerator(client replicate.Client, pollInterval time.Duration, logger *slog.Logger) *MinimaxVideoGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MinimaxVideoGenerator{
		client:       client,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Generate submits a video generation prediction seeded with the scenario and
// the reference frame, then polls until completion and returns the output URL.
func (g *MinimaxVideoGenerator) Generate(ctx context.Context, scenario, imagePath string) (string, error) {
	frameURI, err := imageDataURI(imagePath)
	if err != nil {
		return "", err
	}

	input := map[string]any{
		"prompt":            scenario,
		"first_frame_image": frameURI,
		"prompt_optimizer":  true,
	}

	pred, err := g.client.CreateModelPrediction(ctx, minimaxOwner, minimaxModel, input)
	if err != nil {
		return "", fmt.Errorf("submit video generation: %w", err)
	}

	g.logger.Info("video generation submitted",
		slog.String("prediction_id", pred.ID),
		slog.String("model", minimaxOwner+"/"+minimaxModel),
	)

	pred, err = awaitPrediction(ctx, g.client, pred.ID, g.pollInterval, g.logger)
	if err != nil {
		return "", fmt.Errorf("await video generation: %w", err)
	}

	url, err := pred.OutputURL()
	if err != nil {
		return "", fmt.Errorf("video generation output: %w", err)
	}

	return url, nil
}

// Compile-time check that MinimaxVideoGenerator implements VideoGenerator.
var _ VideoGenerator = (*MinimaxVideoGenerator)(nil)
