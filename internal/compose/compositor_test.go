package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avalls/clipforge/internal/media"
	"github.com/avalls/clipforge/internal/storage"
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

// createSilentVideo creates a video-only clip (no audio stream).
func createSilentVideo(t *testing.T, path string, width, height int, duration float64) {
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

// createTestAudio creates a sine-wave audio file.
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

// probeCSV runs ffprobe and returns the first line of its CSV output.
func probeCSV(t *testing.T, path string, entries string) string {
	t.Helper()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", entries,
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("ffprobe %s failed: %v", entries, err)
	}
	return strings.TrimSpace(strings.Split(string(out), "\n")[0])
}

// listFiles returns the names of all regular files in dir.
func listFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCompositor(t *testing.T, tempDir string) (*Compositor, *media.Runner) {
	t.Helper()

	store, err := storage.NewLocalStorage(tempDir)
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	runner := media.NewRunner("", "", media.WithProgressWriter(io.Discard))
	return NewCompositor(runner, store, quietLogger()), runner
}

func TestCompose_RoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)

	fixtures := t.TempDir()
	tempDir := t.TempDir()
	outputDir := t.TempDir()
	c, runner := newTestCompositor(t, tempDir)
	ctx := context.Background()

	// Original: silent 3s clip. Generated: 4s clip with different geometry
	// and no audio. Ambient track: 8s.
	original := filepath.Join(fixtures, "original.mp4")
	generated := filepath.Join(fixtures, "generated.mp4")
	audio := filepath.Join(fixtures, "ambient.m4a")
	createSilentVideo(t, original, 320, 180, 3.0)
	createSilentVideo(t, generated, 160, 120, 4.0)
	createTestAudio(t, audio, 8.0)

	output := filepath.Join(outputDir, "original_final.mp4")
	if err := c.Compose(ctx, original, generated, audio, output); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	// Geometry matches the original, never the generated clip.
	info, err := runner.ProbeDimensions(ctx, output)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if info.Width != 320 || info.Height != 180 {
		t.Errorf("expected 320x180 output, got %dx%d", info.Width, info.Height)
	}

	// Frame rate is forced to 30.
	if rate := probeCSV(t, output, "stream=r_frame_rate"); rate != "30/1" {
		t.Errorf("expected frame rate 30/1, got %q", rate)
	}

	// Duration is original + generated within one frame's tolerance (the
	// generated segment is truncated to its own 4s, not the 8s audio).
	duration, err := runner.Duration(ctx, output)
	if err != nil {
		t.Fatalf("probe duration: %v", err)
	}
	if duration < 6.5 || duration > 7.5 {
		t.Errorf("expected ~7s output, got %.2f", duration)
	}

	// The output carries exactly one continuous audio stream.
	audioStreams := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		output,
	)
	out, err := audioStreams.Output()
	if err != nil {
		t.Fatalf("probe audio streams: %v", err)
	}
	if lines := strings.Fields(strings.TrimSpace(string(out))); len(lines) != 1 {
		t.Errorf("expected exactly one audio stream, got %d", len(lines))
	}

	// Intermediates are purged on success.
	if files := listFiles(t, tempDir); len(files) != 0 {
		t.Errorf("expected empty temp dir after compose, found %v", files)
	}
}

func TestCompose_FailedStage(t *testing.T) {
	skipIfNoFFmpeg(t)

	fixtures := t.TempDir()
	tempDir := t.TempDir()
	outputDir := t.TempDir()
	c, _ := newTestCompositor(t, tempDir)
	ctx := context.Background()

	original := filepath.Join(fixtures, "original.mp4")
	audio := filepath.Join(fixtures, "ambient.m4a")
	createSilentVideo(t, original, 320, 180, 2.0)
	createTestAudio(t, audio, 2.0)

	output := filepath.Join(outputDir, "broken_final.mp4")
	err := c.Compose(ctx, original, filepath.Join(fixtures, "missing.mp4"), audio, output)
	if err == nil {
		t.Fatal("expected compose to fail for missing generated clip")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %T: %v", err, err)
	}
	if stageErr.Stage != StageMuxAudio {
		t.Errorf("expected failure at %s, got %s", StageMuxAudio, stageErr.Stage)
	}

	// No partial output, and the temp area is purged even on failure.
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("expected no output file after failed compose")
	}
	if files := listFiles(t, tempDir); len(files) != 0 {
		t.Errorf("expected empty temp dir after failed compose, found %v", files)
	}
}

func TestCompose_ProbeFailure(t *testing.T) {
	skipIfNoFFmpeg(t)

	fixtures := t.TempDir()
	tempDir := t.TempDir()
	c, _ := newTestCompositor(t, tempDir)
	ctx := context.Background()

	audio := filepath.Join(fixtures, "ambient.m4a")
	createTestAudio(t, audio, 2.0)

	err := c.Compose(ctx,
		filepath.Join(fixtures, "missing_original.mp4"),
		filepath.Join(fixtures, "missing_generated.mp4"),
		audio,
		filepath.Join(fixtures, "out.mp4"),
	)
	if err == nil {
		t.Fatal("expected compose to fail for missing original")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %T: %v", err, err)
	}
	if stageErr.Stage != StageProbe {
		t.Errorf("expected failure at %s, got %s", StageProbe, stageErr.Stage)
	}
}
