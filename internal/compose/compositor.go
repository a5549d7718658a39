// Package compose merges an original clip and a generated clip into one
// continuous video with a single audio track. It normalizes geometry, frame
// rate, and audio presence before concatenation; the ffmpeg concat filter is
// undefined across streams with heterogeneous audio presence, so both inputs
// are unconditionally given exactly one audio stream first.
package compose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/avalls/clipforge/internal/media"
	"github.com/avalls/clipforge/internal/storage"
)

// Composition stage names surfaced in StageError.
const (
	StageProbe         = "probe"
	StageMuxAudio      = "mux-audio"
	StageInjectSilence = "inject-silence"
	StageConcat        = "concat"
)

// DefaultFrameRate is the frame rate both clips are forced to before
// concatenation.
const DefaultFrameRate = 30

// Spec holds the derived parameters for merging two clips. The target
// geometry always comes from the original clip; the generated clip is scaled
// to match, never the reverse.
type Spec struct {
	Width     int
	Height    int
	FrameRate int
}

// StageError identifies which composition stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("composition stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Compositor produces the final concatenated output via a sequence of ffmpeg
// invocations.
type Compositor struct {
	runner    *media.Runner
	store     storage.Storage
	frameRate int
	logger    *slog.Logger
}

// CompositorOption configures a Compositor.
type CompositorOption func(*Compositor)

// WithFrameRate overrides the target frame rate.
func WithFrameRate(fps int) CompositorOption {
	return func(c *Compositor) {
		if fps > 0 {
			c.frameRate = fps
		}
	}
}

// NewCompositor creates a new Compositor.
func NewCompositor(runner *media.Runner, store storage.Storage, logger *slog.Logger, opts ...CompositorOption) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compositor{
		runner:    runner,
		store:     store,
		frameRate: DefaultFrameRate,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose merges originalVideo followed by generatedVideo into outputPath.
// The generated clip's audio is replaced with audioTrack; the original clip
// carries synthetic silence. Four stages run in strict order, each consuming
// the prior stage's file; a failure at any stage aborts with a StageError
// naming it. Intermediates are purged whether composition succeeds or not,
// and no partial file is ever left at outputPath.
func (c *Compositor) Compose(ctx context.Context, originalVideo, generatedVideo, audioTrack, outputPath string) error {
	stem := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))

	generatedWithAudio := c.store.TempPath(stem + "_generated_muxed.mp4")
	originalSilenced := c.store.TempPath(stem + "_original_silenced.mp4")
	encodeTarget := c.store.TempPath(stem + "_encode.mp4")

	// Unconditional cleanup: failed runs must not accumulate intermediates
	// across a batch, so cleanup ignores the caller's cancellation.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := c.store.CleanupTemp(cleanupCtx, []string{generatedWithAudio, originalSilenced, encodeTarget}); err != nil {
			c.logger.Warn("temp cleanup incomplete", slog.String("error", err.Error()))
		}
	}()

	spec, err := c.probe(ctx, originalVideo)
	if err != nil {
		return &StageError{Stage: StageProbe, Err: err}
	}

	c.logger.Info("composition target",
		slog.Int("width", spec.Width),
		slog.Int("height", spec.Height),
		slog.Int("frame_rate", spec.FrameRate),
	)

	if err := c.muxAudio(ctx, generatedVideo, audioTrack, generatedWithAudio); err != nil {
		return &StageError{Stage: StageMuxAudio, Err: err}
	}

	if err := c.injectSilence(ctx, originalVideo, originalSilenced); err != nil {
		return &StageError{Stage: StageInjectSilence, Err: err}
	}

	if err := c.concat(ctx, spec, originalSilenced, generatedWithAudio, encodeTarget); err != nil {
		return &StageError{Stage: StageConcat, Err: err}
	}

	// The encode wrote into the temp area; only a complete file moves to
	// the output directory.
	if err := moveFile(encodeTarget, outputPath); err != nil {
		return &StageError{Stage: StageConcat, Err: err}
	}

	return nil
}

// probe reads the original clip's geometry, which defines the canonical
// target for the whole composition.
func (c *Compositor) probe(ctx context.Context, originalVideo string) (Spec, error) {
	info, err := c.runner.ProbeDimensions(ctx, originalVideo)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Width:     info.Width,
		Height:    info.Height,
		FrameRate: c.frameRate,
	}, nil
}

// muxAudio combines the generated clip's video stream (copied verbatim) with
// the synthesized audio track, truncated to the shorter of the two.
func (c *Compositor) muxAudio(ctx context.Context, generatedVideo, audioTrack, dst string) error {
	args := media.NewCommand().
		Input(generatedVideo).
		Input(audioTrack).
		Map("0:v:0").
		Map("1:a:0").
		CopyVideo().
		AudioCodec("aac").
		AudioBitrate("192k").
		Shortest().
		Output(dst).
		Args()
	return c.runner.Run(ctx, args)
}

// injectSilence combines the original clip's video stream (copied verbatim)
// with a generated silent mono track, truncated to the original's duration.
// This runs even when the original already has audio: every clip entering
// concatenation must carry exactly one audio stream.
func (c *Compositor) injectSilence(ctx context.Context, originalVideo, dst string) error {
	args := media.NewCommand().
		Input(originalVideo).
		LavfiInput("anullsrc=channel_layout=mono:sample_rate=44100").
		Map("0:v:0").
		Map("1:a:0").
		CopyVideo().
		AudioCodec("aac").
		Shortest().
		Output(dst).
		Args()
	return c.runner.Run(ctx, args)
}

// concat rescales the generated clip to the original's geometry, normalizes
// the pixel aspect ratio, forces both clips to the target frame rate, and
// concatenates video+audio of both in sequence, original first.
func (c *Compositor) concat(ctx context.Context, spec Spec, originalSilenced, generatedWithAudio, dst string) error {
	graph := fmt.Sprintf(
		"[0:v]scale=%d:%d,setsar=1,fps=%d[v0];[1:v]scale=%d:%d,setsar=1,fps=%d[v1];[v0][0:a][v1][1:a]concat=n=2:v=1:a=1[v][a]",
		spec.Width, spec.Height, spec.FrameRate,
		spec.Width, spec.Height, spec.FrameRate,
	)

	args := media.NewCommand().
		Input(originalSilenced).
		Input(generatedWithAudio).
		FilterComplex(graph).
		Map("[v]").
		Map("[a]").
		VideoCodec("libx264").
		Preset("medium").
		CRF(20).
		MaxRate("5M", "10M").
		KeyframeInterval(spec.FrameRate).
		AudioCodec("aac").
		AudioBitrate("192k").
		ResyncTimestamps().
		FastStart().
		Output(dst).
		Args()
	return c.runner.Run(ctx, args)
}

// moveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) // #nosec G304 - src lives in the pipeline temp area
	if err != nil {
		return fmt.Errorf("open encode result: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 - dst is the pipeline output path
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy output file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close output file: %w", err)
	}

	return os.Remove(src)
}
