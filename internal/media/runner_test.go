package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

// createTestVideo creates a simple solid-color test video using ffmpeg.
func createTestVideo(t *testing.T, path string, width, height int, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=red:s=%dx%d:d=%.1f", width, height, duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// createTestAudio creates a short sine-wave audio file using ffmpeg.
func createTestAudio(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%.1f", duration),
		"-c:a", "aac",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

func TestNewRunner(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		r := NewRunner("", "")
		if r.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default ffmpeg path, got %q", r.ffmpegPath)
		}
		if r.ffprobePath != "ffprobe" {
			t.Errorf("expected default ffprobe path, got %q", r.ffprobePath)
		}
	})

	t.Run("custom paths", func(t *testing.T) {
		r := NewRunner("/opt/bin/ffmpeg", "/opt/bin/ffprobe")
		if r.ffmpegPath != "/opt/bin/ffmpeg" {
			t.Errorf("expected custom ffmpeg path, got %q", r.ffmpegPath)
		}
		if r.ffprobePath != "/opt/bin/ffprobe" {
			t.Errorf("expected custom ffprobe path, got %q", r.ffprobePath)
		}
	})
}

func TestRunner_Run(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	r := NewRunner("", "", WithProgressWriter(io.Discard))
	ctx := context.Background()

	t.Run("successful invocation", func(t *testing.T) {
		out := filepath.Join(tmpDir, "ok.mp4")
		args := NewCommand().
			LavfiInput("color=c=blue:s=64x64:d=1").
			VideoCodec("libx264").
			Preset("ultrafast").
			Output(out).
			Args()

		if err := r.Run(ctx, args); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	})

	t.Run("non-zero exit yields FFmpegError with stderr", func(t *testing.T) {
		args := NewCommand().
			Input(filepath.Join(tmpDir, "does-not-exist.mp4")).
			Output(filepath.Join(tmpDir, "never.mp4")).
			Args()

		err := r.Run(ctx, args)
		if err == nil {
			t.Fatal("expected error for missing input")
		}

		var ffErr *FFmpegError
		if !errors.As(err, &ffErr) {
			t.Fatalf("expected FFmpegError, got %T: %v", err, err)
		}
		if ffErr.Stderr == "" {
			t.Error("expected captured stderr in FFmpegError")
		}
		if len(ffErr.Args) == 0 {
			t.Error("expected argument list in FFmpegError")
		}
	})

	t.Run("cancelled context surfaces cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		args := NewCommand().
			LavfiInput("color=c=blue:s=64x64:d=1").
			Output(filepath.Join(tmpDir, "cancelled.mp4")).
			Args()

		err := r.Run(cancelled, args)
		if err == nil {
			t.Fatal("expected error for cancelled context")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestFFmpegError_Format(t *testing.T) {
	err := &FFmpegError{
		Tool:   "ffmpeg",
		Args:   []string{"-i", "in.mp4"},
		Stderr: "no such file",
		Err:    errors.New("exit status 1"),
	}

	msg := err.Error()
	for _, want := range []string{"ffmpeg", "exit status 1", "no such file", "in.mp4"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error message to contain %q, got %q", want, msg)
		}
	}

	if err.Unwrap() == nil {
		t.Error("expected Unwrap to return the underlying error")
	}
}
