package ffprobe

import (
	"testing"
)

const portraitProbe = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "avg_frame_rate": "30000/1001", "side_data_list": [{"rotation": -90}]},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "duration": "12.5"}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 2, "duration": "12.480000", "size": "2048"}
}`

func TestParseRotatedPortrait(t *testing.T) {
	result, err := Parse([]byte(portraitProbe))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w, h := result.Dimensions()
	if w != 1080 || h != 1920 {
		t.Fatalf("expected rotated dimensions 1080x1920, got %dx%d", w, h)
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
	if result.HasSubtitles() {
		t.Fatal("expected no subtitle stream")
	}
	if result.DurationSeconds() != 12.48 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if fps := result.FrameRate(); fps < 29.96 || fps > 29.98 {
		t.Fatalf("unexpected frame rate %v", fps)
	}
	if result.SizeBytes() != 2048 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "9.0", Width: 720, Height: 1280, Tags: StreamTags{Rotate: "180"}},
			{CodecType: "audio", Duration: "9.5"},
			{CodecType: "subtitle"},
		},
		Format: Format{Duration: "N/A"},
	}
	if !result.HasSubtitles() {
		t.Fatal("expected subtitle stream")
	}
	if got := result.DurationSeconds(); got != 9.5 {
		t.Fatalf("expected longest stream duration, got %v", got)
	}
	if w, h := result.Dimensions(); w != 720 || h != 1280 {
		t.Fatalf("180 degree rotation must not swap, got %dx%d", w, h)
	}
}

func TestResultHelpersHandleMissingData(t *testing.T) {
	result := Result{Format: Format{Size: "-1"}}
	if result.HasAudio() {
		t.Fatal("expected no audio")
	}
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("expected zero dimensions, got %dx%d", w, h)
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected zero duration, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.FrameRate() != 0 {
		t.Fatalf("expected zero frame rate, got %v", result.FrameRate())
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
