package media

import (
	"reflect"
	"testing"
)

func TestCommand_StartsWithOverwrite(t *testing.T) {
	args := NewCommand().Args()
	if len(args) != 1 || args[0] != "-y" {
		t.Errorf("expected [-y], got %v", args)
	}
}

func TestCommand_InputOrdering(t *testing.T) {
	args := NewCommand().
		Input("a.mp4").
		LavfiInput("anullsrc=channel_layout=mono:sample_rate=44100").
		Output("out.mp4").
		Args()

	want := []string{
		"-y",
		"-i", "a.mp4",
		"-f", "lavfi", "-i", "anullsrc=channel_layout=mono:sample_rate=44100",
		"out.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args mismatch:\ngot  %v\nwant %v", args, want)
	}
}

func TestCommand_EncodingFlags(t *testing.T) {
	args := NewCommand().
		Input("in.mp4").
		VideoCodec("libx264").
		Preset("medium").
		CRF(20).
		MaxRate("5M", "10M").
		KeyframeInterval(30).
		AudioCodec("aac").
		AudioBitrate("192k").
		ResyncTimestamps().
		FastStart().
		Output("out.mp4").
		Args()

	want := []string{
		"-y",
		"-i", "in.mp4",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "20",
		"-maxrate", "5M", "-bufsize", "10M",
		"-g", "30",
		"-c:a", "aac",
		"-b:a", "192k",
		"-vsync", "2",
		"-movflags", "+faststart",
		"out.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args mismatch:\ngot  %v\nwant %v", args, want)
	}
}

func TestCommand_StreamSelection(t *testing.T) {
	args := NewCommand().
		Input("a.mp4").
		Input("b.m4a").
		Map("0:v:0").
		Map("1:a:0").
		CopyVideo().
		Shortest().
		Output("out.mp4").
		Args()

	want := []string{
		"-y",
		"-i", "a.mp4",
		"-i", "b.m4a",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-shortest",
		"out.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args mismatch:\ngot  %v\nwant %v", args, want)
	}
}
