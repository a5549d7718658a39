// Package frame extracts still frames from video files.
package frame

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avalls/clipforge/internal/media"
)

// Extractor pulls individual frames out of a video via ffmpeg.
type Extractor struct {
	runner *media.Runner
	logger *slog.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(runner *media.Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{runner: runner, logger: logger}
}

// LastFrame decodes the last frame of the video at videoPath and writes it as
// an image to destPath. It reports false when the video cannot be opened, has
// no frames, or the frame cannot be decoded; an unreadable input is an
// expected outcome for this pipeline, not a programming error, so no error
// value is surfaced. Details go to the logger.
func (e *Extractor) LastFrame(ctx context.Context, videoPath, destPath string) bool {
	frames, err := e.runner.CountFrames(ctx, videoPath)
	if err != nil {
		e.logger.Warn("cannot determine frame count",
			slog.String("video", videoPath),
			slog.String("error", err.Error()),
		)
		return false
	}
	if frames <= 0 {
		e.logger.Warn("video has no decodable frames",
			slog.String("video", videoPath),
			slog.Int64("frames", frames),
		)
		return false
	}

	// frames >= 1 here, so the index is always a valid non-negative frame.
	lastIndex := frames - 1

	args := media.NewCommand().
		Input(videoPath).
		VideoFilter(fmt.Sprintf(`select=eq(n\,%d)`, lastIndex)).
		Frames(1).
		Output(destPath).
		Args()

	if err := e.runner.Run(ctx, args); err != nil {
		e.logger.Warn("cannot decode last frame",
			slog.String("video", videoPath),
			slog.Int64("frame_index", lastIndex),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}
