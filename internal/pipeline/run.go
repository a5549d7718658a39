// Package pipeline orchestrates the per-file processing workflow: frame
// extraction, scene description, video and audio generation, and final
// composition. It owns the Run aggregate and its state machine, and drives a
// whole input directory as a batch.
package pipeline

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avalls/clipforge/internal/pipeline/id"
)

// Stage names one discrete step of a file's pipeline.
type Stage string

const (
	// StageFrameExtract pulls the last frame from the source video.
	StageFrameExtract Stage = "frame-extract"
	// StageDescribe turns the frame into a scenario via the vision model.
	StageDescribe Stage = "describe"
	// StageGenerateVideo produces the AI video clip.
	StageGenerateVideo Stage = "generate-video"
	// StageGenerateAudio produces the ambient audio track.
	StageGenerateAudio Stage = "generate-audio"
	// StageCompose downloads the generated artifacts and merges everything.
	StageCompose Stage = "compose"
)

// Status represents the current state of a Run.
type Status string

const (
	// StatusPending indicates the run has not started yet.
	StatusPending Status = "PENDING"
	// StatusFrameExtracted indicates the last frame was written.
	StatusFrameExtracted Status = "FRAME_EXTRACTED"
	// StatusDescribed indicates the scenario text was generated.
	StatusDescribed Status = "DESCRIBED"
	// StatusVideoGenerated indicates the generated clip is available.
	StatusVideoGenerated Status = "VIDEO_GENERATED"
	// StatusAudioGenerated indicates the ambient track is available.
	StatusAudioGenerated Status = "AUDIO_GENERATED"
	// StatusComposed indicates the final video was written.
	StatusComposed Status = "COMPOSED"
	// StatusDone indicates the run finished successfully.
	StatusDone Status = "DONE"
	// StatusFailed indicates the run failed at some stage.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines the linear stage progression. Any non-terminal
// state may additionally transition to FAILED.
var validTransitions = map[Status][]Status{
	StatusPending:        {StatusFrameExtracted},
	StatusFrameExtracted: {StatusDescribed},
	StatusDescribed:      {StatusVideoGenerated},
	StatusVideoGenerated: {StatusAudioGenerated},
	StatusAudioGenerated: {StatusComposed},
	StatusComposed:       {StatusDone},
	StatusDone:           {},
	StatusFailed:         {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	if to == StatusFailed {
		return from != StatusDone && from != StatusFailed
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Run represents one input video's journey through the pipeline.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// SourcePath is the input video path.
	SourcePath string
	// Stem is the input file name without extension; temp and output
	// artifacts are namespaced by it.
	Stem string
	// Status is the current run state.
	Status Status
	// FramePath is the extracted last-frame image path.
	FramePath string
	// Scenario is the vision model's scenario text.
	Scenario string
	// VideoURL references the generated video clip.
	VideoURL string
	// AudioURL references the generated ambient audio.
	AudioURL string
	// FinalPath is the composited output video path.
	FinalPath string
	// FinalURL is the S3 object URL when upload is configured.
	FinalURL string
	// LogPath is the per-file stage log path.
	LogPath string
	// FailedStage names the stage that failed, when Status is FAILED.
	FailedStage Stage
	// Error contains the failure reason, when Status is FAILED.
	Error string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// NewRun creates a new pending Run for the given source video.
func NewRun(sourcePath string) *Run {
	now := time.Now()
	base := filepath.Base(sourcePath)
	return &Run{
		ID:         id.Generate(),
		SourcePath: sourcePath,
		Stem:       strings.TrimSuffix(base, filepath.Ext(base)),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the run status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Status, status) {
		return ErrInvalidTransition
	}

	r.Status = status
	r.UpdatedAt = time.Now()

	if status == StatusDone || status == StatusFailed {
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Fail transitions the run to FAILED, recording the stage and reason.
func (r *Run) Fail(stage Stage, reason string) error {
	r.mu.Lock()
	r.FailedStage = stage
	r.Error = reason
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// GetStatus returns the current run status (thread-safe).
func (r *Run) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true if the run is in a terminal state.
func (r *Run) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == StatusDone || r.Status == StatusFailed
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &Run{
		ID:          r.ID,
		SourcePath:  r.SourcePath,
		Stem:        r.Stem,
		Status:      r.Status,
		FramePath:   r.FramePath,
		Scenario:    r.Scenario,
		VideoURL:    r.VideoURL,
		AudioURL:    r.AudioURL,
		FinalPath:   r.FinalPath,
		FinalURL:    r.FinalURL,
		LogPath:     r.LogPath,
		FailedStage: r.FailedStage,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
}
