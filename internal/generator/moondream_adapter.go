package generator

import (
	"context"
	"fmt"

	"github.com/avalls/clipforge/internal/moondream"
)

// scenarioQuestion is the fixed question posed to the vision model for every
// extracted frame.
const scenarioQuestion = "Describe an impossible, viral-worthy scenario that could happen in this scene"

// MoondreamDescriber adapts the Moondream client to the Describer port.
type MoondreamDescriber struct {
	client moondream.Client
}

// NewMoondreamDescriber creates a new MoondreamDescriber.
func NewMoondreamDescriber(client moondream.Client) *MoondreamDescriber {
	return &MoondreamDescriber{client: client}
}

// Describe sends the image to Moondream and returns the scenario text.
func (d *MoondreamDescriber) Describe(ctx context.Context, imagePath string) (string, error) {
	dataURI, err := imageDataURI(imagePath)
	if err != nil {
		return "", err
	}

	scenario, err := d.client.Query(ctx, dataURI, scenarioQuestion)
	if err != nil {
		return "", fmt.Errorf("describe frame: %w", err)
	}

	return scenario, nil
}

// Compile-time check that MoondreamDescriber implements Describer.
var _ Describer = (*MoondreamDescriber)(nil)
