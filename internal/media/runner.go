// Package media wraps the ffmpeg and ffprobe command line tools behind a
// typed runner and argument builder. All invocations are synchronous and
// context-aware; callers decide how to react to failures.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner executes ffmpeg and ffprobe processes.
type Runner struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	// progress receives ffmpeg's live stderr stream so encoding progress
	// stays visible while a run is in flight. Defaults to os.Stderr.
	progress io.Writer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProgressWriter redirects ffmpeg's live stderr stream.
// Useful in tests to keep output quiet.
func WithProgressWriter(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.progress = w
	}
}

// NewRunner creates a new Runner. Empty paths default to "ffmpeg" and
// "ffprobe" resolved via PATH.
func NewRunner(ffmpegPath, ffprobePath string, opts ...RunnerOption) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	r := &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		progress:    os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes ffmpeg with the given arguments and blocks until it exits.
// Stderr is streamed live to the progress writer and simultaneously captured
// so a non-zero exit produces an FFmpegError with full diagnostics.
func (r *Runner) Run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = io.MultiWriter(r.progress, &stderr)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Tool:   r.ffmpegPath,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// Output executes ffprobe with the given arguments and returns its stdout.
func (r *Runner) Output(ctx context.Context, args []string) ([]byte, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, &FFmpegError{
			Tool:   r.ffprobePath,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// FFmpegError represents a failed ffmpeg or ffprobe invocation, including
// the full argument list and captured stderr output.
type FFmpegError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Tool, e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
