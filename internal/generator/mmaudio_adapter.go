package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avalls/clipforge/internal/replicate"
)

// mmaudioVersion pins the MMAudio model version on Replicate.
const mmaudioVersion = "4b9f801a167b1f6cc2db6ba7ffdeb307630bf411841d4e8300e63ca992de0be9"

// Ambient-audio prompt tuning for MMAudio.
const (
	ambientPrompt  = "ambient sound effects matching the scene"
	negativePrompt = "music"
	numSteps       = 25
	cfgStrength    = 4.5
)

// MMAudioGenerator adapts the Replicate client to the AudioGenerator port
// using the zsxkib/mmaudio model.
type MMAudioGenerator struct {
	client       replicate.Client
	pollInterval time.Duration
	seed         int
	logger       *slog.Logger
}

// NewMMAudioGenerator creates a new MMAudioGenerator. A negative seed lets
// the model pick one per generation.
func NewMMAudioGenerator(client replicate.Client, pollInterval time.Duration, seed int, logger *slog.Logger) *MMAudioGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MMAudioGenerator{
		client:       client,
		pollInterval: pollInterval,
		seed:         seed,
		logger:       logger,
	}
}

// Generate submits an ambient audio prediction for the generated video, then
// polls until completion and returns the output URL.
func (g *MMAudioGenerator) Generate(ctx context.Context, videoURL string, durationSec int) (string, error) {
	input := map[string]any{
		"video":           videoURL,
		"prompt":          ambientPrompt,
		"duration":        durationSec,
		"num_steps":       numSteps,
		"cfg_strength":    cfgStrength,
		"negative_prompt": negativePrompt,
	}
	if g.seed >= 0 {
		input["seed"] = g.seed
	}

	pred, err := g.client.CreatePrediction(ctx, mmaudioVersion, input)
	if err != nil {
		return "", fmt.Errorf("submit audio generation: %w", err)
	}

	g.logger.Info("audio generation submitted",
		slog.String("prediction_id", pred.ID),
		slog.Int("duration_sec", durationSec),
	)

	pred, err = awaitPrediction(ctx, g.client, pred.ID, g.pollInterval, g.logger)
	if err != nil {
		return "", fmt.Errorf("await audio generation: %w", err)
	}

	url, err := pred.OutputURL()
	if err != nil {
		return "", fmt.Errorf("audio generation output: %w", err)
	}

	return url, nil
}

// Compile-time check that MMAudioGenerator implements AudioGenerator.
var _ AudioGenerator = (*MMAudioGenerator)(nil)
