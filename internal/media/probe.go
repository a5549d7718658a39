package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Static errors for probing operations.
var (
	// ErrNoVideoStream is returned when a file carries no video stream.
	ErrNoVideoStream = errors.New("media: no video stream found")
	// ErrProbeParse is returned when ffprobe output cannot be parsed.
	ErrProbeParse = errors.New("media: cannot parse ffprobe output")
)

// VideoInfo holds the structural metadata of a video's first video stream.
type VideoInfo struct {
	Width  int
	Height int
}

// ffprobeStreams mirrors the JSON shape of `ffprobe -show_entries stream=...`.
type ffprobeStreams struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// ProbeDimensions returns the width and height of the first video stream.
// Returns ErrNoVideoStream if the file has no video stream and ErrProbeParse
// if the tool output is not the expected JSON structure.
func (r *Runner) ProbeDimensions(ctx context.Context, path string) (VideoInfo, error) {
	out, err := r.Output(ctx, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	})
	if err != nil {
		return VideoInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var probed ffprobeStreams
	if err := json.Unmarshal(out, &probed); err != nil {
		return VideoInfo{}, fmt.Errorf("%w: %w", ErrProbeParse, err)
	}
	if len(probed.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}

	info := VideoInfo{
		Width:  probed.Streams[0].Width,
		Height: probed.Streams[0].Height,
	}
	if info.Width <= 0 || info.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("%w: stream reports %dx%d", ErrProbeParse, info.Width, info.Height)
	}

	return info, nil
}

// Duration returns the container duration of a media file in seconds.
func (r *Runner) Duration(ctx context.Context, path string) (float64, error) {
	out, err := r.Output(ctx, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("probe duration %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", ErrProbeParse, strings.TrimSpace(string(out)))
	}

	return duration, nil
}

// CountFrames returns the number of decodable frames in the first video
// stream. It counts demuxed packets, which is exact for the formats this
// pipeline accepts without requiring a full decode pass.
func (r *Runner) CountFrames(ctx context.Context, path string) (int64, error) {
	out, err := r.Output(ctx, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "json",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("count frames %s: %w", path, err)
	}

	var probed ffprobeStreams
	if err := json.Unmarshal(out, &probed); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeParse, err)
	}
	if len(probed.Streams) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}

	frames, err := strconv.ParseInt(probed.Streams[0].NbReadPackets, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: packet count %q", ErrProbeParse, probed.Streams[0].NbReadPackets)
	}

	return frames, nil
}
