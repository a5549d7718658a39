package media

import (
	"fmt"
	"strconv"
)

// Command assembles an ffmpeg argument list from typed operations so callers
// never stitch raw option strings. Arguments are emitted in call order, which
// mirrors ffmpeg's positional semantics (input options precede their input,
// output options precede the output path).
type Command struct {
	args []string
}

// NewCommand creates an empty ffmpeg command with overwrite enabled, which is
// what every batch invocation in this codebase wants.
func NewCommand() *Command {
	return &Command{args: []string{"-y"}}
}

// Input adds a file input.
func (c *Command) Input(path string) *Command {
	c.args = append(c.args, "-i", path)
	return c
}

// LavfiInput adds a synthetic lavfi source input, e.g. anullsrc for silence.
func (c *Command) LavfiInput(spec string) *Command {
	c.args = append(c.args, "-f", "lavfi", "-i", spec)
	return c
}

// LoopImageInput adds a still image as a looping video input.
func (c *Command) LoopImageInput(path string) *Command {
	c.args = append(c.args, "-loop", "1", "-i", path)
	return c
}

// VideoFilter sets a simple -vf filter chain.
func (c *Command) VideoFilter(filter string) *Command {
	c.args = append(c.args, "-vf", filter)
	return c
}

// FilterComplex sets a -filter_complex graph.
func (c *Command) FilterComplex(graph string) *Command {
	c.args = append(c.args, "-filter_complex", graph)
	return c
}

// Map selects an output stream, e.g. "[v]" or "0:a".
func (c *Command) Map(stream string) *Command {
	c.args = append(c.args, "-map", stream)
	return c
}

// CopyVideo copies the video stream without re-encoding.
func (c *Command) CopyVideo() *Command {
	c.args = append(c.args, "-c:v", "copy")
	return c
}

// VideoCodec sets the video encoder.
func (c *Command) VideoCodec(codec string) *Command {
	c.args = append(c.args, "-c:v", codec)
	return c
}

// AudioCodec sets the audio encoder.
func (c *Command) AudioCodec(codec string) *Command {
	c.args = append(c.args, "-c:a", codec)
	return c
}

// AudioBitrate sets the audio bitrate, e.g. "192k".
func (c *Command) AudioBitrate(rate string) *Command {
	c.args = append(c.args, "-b:a", rate)
	return c
}

// Preset sets the x264 encoding speed preset.
func (c *Command) Preset(preset string) *Command {
	c.args = append(c.args, "-preset", preset)
	return c
}

// CRF sets the constant rate factor quality target.
func (c *Command) CRF(crf int) *Command {
	c.args = append(c.args, "-crf", strconv.Itoa(crf))
	return c
}

// MaxRate bounds the video bitrate with a matching VBV buffer.
func (c *Command) MaxRate(maxRate, bufSize string) *Command {
	c.args = append(c.args, "-maxrate", maxRate, "-bufsize", bufSize)
	return c
}

// KeyframeInterval fixes the GOP size.
func (c *Command) KeyframeInterval(frames int) *Command {
	c.args = append(c.args, "-g", strconv.Itoa(frames))
	return c
}

// ResyncTimestamps regenerates presentation timestamps so forced frame-rate
// conversion does not accumulate drift.
func (c *Command) ResyncTimestamps() *Command {
	c.args = append(c.args, "-vsync", "2")
	return c
}

// FastStart moves the moov atom to the front for progressive download.
func (c *Command) FastStart() *Command {
	c.args = append(c.args, "-movflags", "+faststart")
	return c
}

// Shortest truncates the output to the shortest input stream.
func (c *Command) Shortest() *Command {
	c.args = append(c.args, "-shortest")
	return c
}

// Duration limits the output duration in seconds.
func (c *Command) Duration(seconds float64) *Command {
	c.args = append(c.args, "-t", fmt.Sprintf("%.3f", seconds))
	return c
}

// Frames limits the number of output video frames.
func (c *Command) Frames(n int) *Command {
	c.args = append(c.args, "-frames:v", strconv.Itoa(n))
	return c
}

// Output sets the output path. Must be called last.
func (c *Command) Output(path string) *Command {
	c.args = append(c.args, path)
	return c
}

// Args returns the assembled argument list.
func (c *Command) Args() []string {
	return c.args
}
