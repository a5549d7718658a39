package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalls/clipforge/internal/storage"
)

// fakeExtractor succeeds for every source not listed in failFor.
type fakeExtractor struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeExtractor) LastFrame(_ context.Context, videoPath, destPath string) bool {
	f.calls = append(f.calls, videoPath)
	if f.failFor[filepath.Base(videoPath)] {
		return false
	}
	return os.WriteFile(destPath, []byte("jpeg"), 0600) == nil
}

type fakeDescriber struct {
	scenario string
	err      error
}

func (f *fakeDescriber) Describe(_ context.Context, _ string) (string, error) {
	return f.scenario, f.err
}

type fakeVideoGen struct {
	url string
	err error
}

func (f *fakeVideoGen) Generate(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

type fakeAudioGen struct {
	url      string
	err      error
	duration int
}

func (f *fakeAudioGen) Generate(_ context.Context, _ string, durationSec int) (string, error) {
	f.duration = durationSec
	return f.url, f.err
}

// fakeDownloader materialises a placeholder file in temp storage.
type fakeDownloader struct {
	store storage.Storage
	err   error
}

func (f *fakeDownloader) Download(ctx context.Context, _, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.store.SaveTemp(ctx, name, strings.NewReader("artifact"))
}

// fakeCompositor writes the output file so downstream checks see it.
type fakeCompositor struct {
	err   error
	calls int
}

func (f *fakeCompositor) Compose(_ context.Context, _, _, _, outputPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("video"), 0600)
}

type serviceFixture struct {
	service    *Service
	repo       *MemoryRepository
	extractor  *fakeExtractor
	audioGen   *fakeAudioGen
	compositor *fakeCompositor
	inputDir   string
	outputDir  string
}

func newServiceFixture(t *testing.T, opts ...ServiceOption) *serviceFixture {
	t.Helper()

	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "output")
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &serviceFixture{
		repo:       NewMemoryRepository(),
		extractor:  &fakeExtractor{failFor: map[string]bool{}},
		audioGen:   &fakeAudioGen{url: "https://cdn.example.com/ambient.mp3"},
		compositor: &fakeCompositor{},
		inputDir:   inputDir,
		outputDir:  outputDir,
	}
	f.service = NewService(
		f.repo,
		f.extractor,
		&fakeDescriber{scenario: "a dragon lands on the rooftop"},
		&fakeVideoGen{url: "https://cdn.example.com/generated.mp4"},
		f.audioGen,
		f.compositor,
		&fakeDownloader{store: store},
		store,
		inputDir,
		outputDir,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts...,
	)
	return f
}

func (f *serviceFixture) addInput(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.inputDir, name), []byte("fake video"), 0600))
}

func TestService_ProcessAll(t *testing.T) {
	f := newServiceFixture(t)
	f.addInput(t, "clip.mp4")
	f.addInput(t, "shot.MOV")
	f.addInput(t, "notes.txt")
	f.addInput(t, "broken.avi")
	f.extractor.failFor["broken.avi"] = true

	results, err := f.service.ProcessAll(context.Background())
	require.NoError(t, err)

	// notes.txt is skipped; the uppercase extension is still supported.
	require.Len(t, results, 3)

	byName := map[string]Result{}
	for _, r := range results {
		byName[filepath.Base(r.SourcePath)] = r
	}

	good := byName["clip.mp4"]
	assert.True(t, good.Succeeded())
	assert.Equal(t, "a dragon lands on the rooftop", good.Scenario)
	assert.Equal(t, filepath.Join(f.outputDir, "clip_final.mp4"), good.FinalPath)
	assert.FileExists(t, good.FinalPath)
	assert.FileExists(t, good.FramePath)
	assert.Empty(t, good.FinalURL)

	upper := byName["shot.MOV"]
	assert.True(t, upper.Succeeded())

	bad := byName["broken.avi"]
	assert.False(t, bad.Succeeded())
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Equal(t, StageFrameExtract, bad.FailedStage)
	assert.Empty(t, bad.FinalPath)

	// One file's failure never halts the batch.
	assert.Equal(t, 2, f.compositor.calls)

	// Every run landed in the repository in its terminal state.
	runs, err := f.repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.True(t, r.IsTerminal())
	}
}

func TestService_StageLog(t *testing.T) {
	f := newServiceFixture(t)
	f.addInput(t, "clip.mp4")

	results, err := f.service.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	logPath := filepath.Join(f.outputDir, "clip.log")
	assert.Equal(t, logPath, results[0].LogPath)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "Generated scenario: a dragon lands on the rooftop")
	assert.Contains(t, text, "Generated video URL: https://cdn.example.com/generated.mp4")
	assert.Contains(t, text, "Generated audio URL: https://cdn.example.com/ambient.mp3")
	assert.Contains(t, text, "Final video path: "+filepath.Join(f.outputDir, "clip_final.mp4"))
}

func TestService_AudioDuration(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		f := newServiceFixture(t)
		f.addInput(t, "clip.mp4")

		_, err := f.service.ProcessAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 8, f.audioGen.duration)
	})

	t.Run("configured", func(t *testing.T) {
		f := newServiceFixture(t, WithAudioDuration(12))
		f.addInput(t, "clip.mp4")

		_, err := f.service.ProcessAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 12, f.audioGen.duration)
	})
}

func TestService_CompositionFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.addInput(t, "clip.mp4")
	f.compositor.err = errors.New("concat stage exploded")

	results, err := f.service.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.False(t, r.Succeeded())
	assert.Equal(t, StageCompose, r.FailedStage)
	assert.Contains(t, r.Error, "concat stage exploded")
	// Earlier stage outputs are still reported for diagnosis.
	assert.NotEmpty(t, r.Scenario)
	assert.NotEmpty(t, r.VideoURL)
	assert.NotEmpty(t, r.AudioURL)
}

func TestService_CancelledContext(t *testing.T) {
	f := newServiceFixture(t)
	f.addInput(t, "clip.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.ProcessAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.extractor.calls)
}

func TestService_UploadFailureIsNotFatal(t *testing.T) {
	// Local storage cannot upload; the run must still finish with a local
	// output and no URL.
	f := newServiceFixture(t, WithS3Upload(true))
	f.addInput(t, "clip.mp4")

	results, err := f.service.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Succeeded())
	assert.FileExists(t, r.FinalPath)
	assert.Empty(t, r.FinalURL)
}

func TestService_EmptyInputDir(t *testing.T) {
	f := newServiceFixture(t)

	results, err := f.service.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
