// Package replicate provides an HTTP client for the Replicate predictions API.
package replicate

import (
	"encoding/json"
	"errors"
)

// Status represents the status of a Replicate prediction.
type Status string

// Prediction statuses aligned with the Replicate API.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// ErrNoOutput is returned when a succeeded prediction carries no usable output.
var ErrNoOutput = errors.New("replicate: no output in prediction")

// Prediction represents a Replicate prediction resource.
type Prediction struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// OutputURL extracts the output artifact URL from a prediction. Replicate
// models return either a single URL string or a list of URL strings; for
// lists the first entry is the primary artifact.
func (p Prediction) OutputURL() (string, error) {
	if len(p.Output) == 0 {
		return "", ErrNoOutput
	}

	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil && single != "" {
		return single, nil
	}

	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}

	return "", ErrNoOutput
}

// createRequest is the request body for creating a prediction.
type createRequest struct {
	// Version pins a specific model version hash. Omitted when creating a
	// prediction against an official model endpoint.
	Version string `json:"version,omitempty"`
	// Input is the model-specific input payload.
	Input map[string]any `json:"input"`
}

// errorResponse is the error body returned by the Replicate API.
type errorResponse struct {
	Detail string `json:"detail,omitempty"`
}
