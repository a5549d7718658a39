package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avalls/clipforge/internal/generator"
	"github.com/avalls/clipforge/internal/storage"
)

// supportedExtensions is the case-insensitive allow-list of input formats.
var supportedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

// FrameExtractor extracts the last decodable frame of a video to an image
// file, reporting false when the video is unreadable or empty.
type FrameExtractor interface {
	LastFrame(ctx context.Context, videoPath, destPath string) bool
}

// Compositor merges the original clip, the generated clip, and the generated
// audio into one output video.
type Compositor interface {
	Compose(ctx context.Context, originalVideo, generatedVideo, audioTrack, outputPath string) error
}

// Downloader fetches a remote artifact into temporary storage and returns
// its local path.
type Downloader interface {
	Download(ctx context.Context, url, name string) (string, error)
}

// Result is the metadata-only outcome of one run. It never carries media
// bytes, only paths, references, and the scenario text.
type Result struct {
	SourcePath  string
	Status      Status
	Scenario    string
	VideoURL    string
	AudioURL    string
	FramePath   string
	LogPath     string
	FinalPath   string
	FinalURL    string
	FailedStage Stage
	Error       string
}

// Succeeded reports whether the run reached DONE.
func (r Result) Succeeded() bool {
	return r.Status == StatusDone
}

// Service drives the full pipeline for every supported video in the input
// directory, sequentially. One file's failure never halts the batch.
type Service struct {
	repo       Repository
	frames     FrameExtractor
	describer  generator.Describer
	videoGen   generator.VideoGenerator
	audioGen   generator.AudioGenerator
	compositor Compositor
	downloader Downloader
	store      storage.Storage
	logger     *slog.Logger

	inputDir          string
	outputDir         string
	audioDurationSec  int
	uploadToS3        bool
	generationTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAudioDuration sets the target duration in seconds requested from the
// audio generation service.
func WithAudioDuration(sec int) ServiceOption {
	return func(s *Service) {
		if sec > 0 {
			s.audioDurationSec = sec
		}
	}
}

// WithS3Upload enables uploading final videos to S3 after composition.
func WithS3Upload(enabled bool) ServiceOption {
	return func(s *Service) {
		s.uploadToS3 = enabled
	}
}

// WithGenerationTimeout bounds each remote generation call. Zero disables
// the bound.
func WithGenerationTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.generationTimeout = d
	}
}

// NewService creates a new pipeline Service.
func NewService(
	repo Repository,
	frames FrameExtractor,
	describer generator.Describer,
	videoGen generator.VideoGenerator,
	audioGen generator.AudioGenerator,
	compositor Compositor,
	downloader Downloader,
	store storage.Storage,
	inputDir, outputDir string,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:             repo,
		frames:           frames,
		describer:        describer,
		videoGen:         videoGen,
		audioGen:         audioGen,
		compositor:       compositor,
		downloader:       downloader,
		store:            store,
		logger:           logger,
		inputDir:         inputDir,
		outputDir:        outputDir,
		audioDurationSec: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessAll discovers every supported video in the input directory and runs
// each through the full pipeline. It returns one Result per discovered file.
// The error is non-nil only when the batch itself cannot run (unreadable
// input directory, cancelled context); per-file failures land in the results.
func (s *Service) ProcessAll(ctx context.Context) ([]Result, error) {
	if err := os.MkdirAll(s.outputDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(s.inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("batch cancelled: %w", err)
		}

		path := filepath.Join(s.inputDir, entry.Name())
		s.logger.Info("processing video", slog.String("source", path))

		result := s.processOne(ctx, path)
		results = append(results, result)

		if result.Succeeded() {
			s.logger.Info("video processed",
				slog.String("source", path),
				slog.String("final", result.FinalPath),
			)
		} else {
			s.logger.Error("video processing failed",
				slog.String("source", path),
				slog.String("stage", string(result.FailedStage)),
				slog.String("error", result.Error),
			)
		}
	}

	return results, nil
}

// processOne runs a single video through every stage, advancing the run's
// state machine and recording each completed stage in the per-file log.
func (s *Service) processOne(ctx context.Context, sourcePath string) Result {
	run := NewRun(sourcePath)
	s.saveRun(ctx, run)

	run.LogPath = filepath.Join(s.outputDir, run.Stem+".log")
	stageLog, err := NewStageLog(run.LogPath)
	if err != nil {
		return s.fail(ctx, run, StageFrameExtract, err.Error())
	}
	defer func() { _ = stageLog.Close() }()

	// Stage 1: extract the last frame. A false here is an expected outcome
	// for corrupt or empty inputs and is fatal for this file only.
	framePath := filepath.Join(s.outputDir, run.Stem+"_final_frame.jpg")
	if ok := s.frames.LastFrame(ctx, sourcePath, framePath); !ok {
		return s.fail(ctx, run, StageFrameExtract, "failed to extract frame from video")
	}
	run.FramePath = framePath
	s.advance(ctx, run, StatusFrameExtracted)

	// Stage 2: describe the frame.
	scenario, err := s.describer.Describe(ctx, run.FramePath)
	if err != nil {
		return s.fail(ctx, run, StageDescribe, err.Error())
	}
	run.Scenario = scenario
	s.advance(ctx, run, StatusDescribed)
	s.record(stageLog, "Generated scenario", scenario)

	// Stage 3: generate the continuation clip.
	videoURL, err := s.generateVideo(ctx, scenario, run.FramePath)
	if err != nil {
		return s.fail(ctx, run, StageGenerateVideo, err.Error())
	}
	run.VideoURL = videoURL
	s.advance(ctx, run, StatusVideoGenerated)
	s.record(stageLog, "Generated video URL", videoURL)

	// Stage 4: generate the ambient track.
	audioURL, err := s.generateAudio(ctx, videoURL)
	if err != nil {
		return s.fail(ctx, run, StageGenerateAudio, err.Error())
	}
	run.AudioURL = audioURL
	s.advance(ctx, run, StatusAudioGenerated)
	s.record(stageLog, "Generated audio URL", audioURL)

	// Stage 5: download the artifacts and compose the final video.
	finalPath, err := s.compose(ctx, run)
	if err != nil {
		return s.fail(ctx, run, StageCompose, err.Error())
	}
	run.FinalPath = finalPath
	s.advance(ctx, run, StatusComposed)
	s.record(stageLog, "Final video path", finalPath)

	if s.uploadToS3 {
		if url, err := s.uploadFinal(ctx, run); err != nil {
			// The local output exists; delivery failure is not fatal.
			s.logger.Warn("final video upload failed",
				slog.String("source", sourcePath),
				slog.String("error", err.Error()),
			)
		} else {
			run.FinalURL = url
			s.record(stageLog, "Final video URL", url)
		}
	}

	s.advance(ctx, run, StatusDone)
	return s.result(run)
}

// generateVideo runs the video generation stage under the configured timeout.
func (s *Service) generateVideo(ctx context.Context, scenario, framePath string) (string, error) {
	ctx, cancel := s.boundGeneration(ctx)
	defer cancel()
	return s.videoGen.Generate(ctx, scenario, framePath)
}

// generateAudio runs the audio generation stage under the configured timeout.
func (s *Service) generateAudio(ctx context.Context, videoURL string) (string, error) {
	ctx, cancel := s.boundGeneration(ctx)
	defer cancel()
	return s.audioGen.Generate(ctx, videoURL, s.audioDurationSec)
}

// boundGeneration applies the generation timeout when one is configured.
func (s *Service) boundGeneration(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.generationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.generationTimeout)
}

// compose downloads the generated video and audio to the temp area and hands
// everything to the compositor. Downloads are purged whether composition
// succeeds or not.
func (s *Service) compose(ctx context.Context, run *Run) (string, error) {
	generatedVideo, err := s.downloader.Download(ctx, run.VideoURL, run.Stem+"_generated.mp4")
	if err != nil {
		return "", fmt.Errorf("download generated video: %w", err)
	}
	downloads := []string{generatedVideo}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := s.store.CleanupTemp(cleanupCtx, downloads); err != nil {
			s.logger.Warn("download cleanup incomplete", slog.String("error", err.Error()))
		}
	}()

	audioTrack, err := s.downloader.Download(ctx, run.AudioURL, run.Stem+"_audio.mp3")
	if err != nil {
		return "", fmt.Errorf("download generated audio: %w", err)
	}
	downloads = append(downloads, audioTrack)

	finalPath := filepath.Join(s.outputDir, run.Stem+"_final.mp4")
	if err := s.compositor.Compose(ctx, run.SourcePath, generatedVideo, audioTrack, finalPath); err != nil {
		return "", err
	}

	return finalPath, nil
}

// uploadFinal pushes the composited video to S3 and returns the object URL.
func (s *Service) uploadFinal(ctx context.Context, run *Run) (string, error) {
	f, err := s.store.Open(ctx, run.FinalPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return s.store.UploadToS3(ctx, "clipforge/"+filepath.Base(run.FinalPath), f)
}

// advance moves the run forward and persists the new state.
func (s *Service) advance(ctx context.Context, run *Run, status Status) {
	if err := run.TransitionTo(status); err != nil {
		s.logger.Error("run transition rejected",
			slog.String("run_id", run.ID),
			slog.String("to", string(status)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.saveRun(ctx, run)
}

// fail marks the run failed at the given stage and builds its result.
func (s *Service) fail(ctx context.Context, run *Run, stage Stage, reason string) Result {
	if err := run.Fail(stage, reason); err != nil {
		s.logger.Error("run failure transition rejected",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
	s.saveRun(ctx, run)
	return s.result(run)
}

// saveRun persists the run, logging instead of failing the pipeline when the
// repository misbehaves.
func (s *Service) saveRun(ctx context.Context, run *Run) {
	if err := s.repo.Save(ctx, run); err != nil {
		s.logger.Error("failed to save run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// record writes one stage log line, logging write failures without aborting.
func (s *Service) record(stageLog *StageLog, label, value string) {
	if err := stageLog.Record(label, value); err != nil {
		s.logger.Warn("stage log write failed",
			slog.String("label", label),
			slog.String("error", err.Error()),
		)
	}
}

// result snapshots the run into a metadata-only Result.
func (s *Service) result(run *Run) Result {
	snapshot := run.Clone()
	return Result{
		SourcePath:  snapshot.SourcePath,
		Status:      snapshot.Status,
		Scenario:    snapshot.Scenario,
		VideoURL:    snapshot.VideoURL,
		AudioURL:    snapshot.AudioURL,
		FramePath:   snapshot.FramePath,
		LogPath:     snapshot.LogPath,
		FinalPath:   snapshot.FinalPath,
		FinalURL:    snapshot.FinalURL,
		FailedStage: snapshot.FailedStage,
		Error:       snapshot.Error,
	}
}
