package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int          `json:"index"`
	CodecName    string       `json:"codec_name"`
	CodecType    string       `json:"codec_type"`
	Duration     string       `json:"duration"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	AvgFrameRate string       `json:"avg_frame_rate"`
	SampleRate   string       `json:"sample_rate"`
	Channels     int          `json:"channels"`
	Tags         StreamTags   `json:"tags"`
	SideData     []StreamSide `json:"side_data_list"`
}

// StreamTags holds the subset of stream tags used for orientation.
type StreamTags struct {
	Rotate string `json:"rotate"`
}

// StreamSide carries display-matrix rotation reported by newer ffprobe builds.
type StreamSide struct {
	Rotation float64 `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, Args(path)...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Args returns the ffprobe arguments used by Inspect.
func Args(path string) []string {
	return []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
}

// Parse decodes raw ffprobe JSON.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// HasAudio reports whether at least one audio stream exists.
func (r Result) HasAudio() bool {
	return r.hasStream("audio")
}

// HasSubtitles reports whether a subtitle track is muxed in.
func (r Result) HasSubtitles() bool {
	return r.hasStream("subtitle")
}

func (r Result) hasStream(codecType string) bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			return true
		}
	}
	return false
}

// Dimensions returns the display width and height of the first video stream,
// swapping them when the stream is rotated by 90 or 270 degrees.
func (r Result) Dimensions() (int, int) {
	stream, ok := r.VideoStream()
	if !ok {
		return 0, 0
	}
	if rotated(stream) {
		return stream.Height, stream.Width
	}
	return stream.Width, stream.Height
}

func rotated(stream Stream) bool {
	angle := parseFloat(stream.Tags.Rotate)
	if math.IsNaN(angle) || angle == 0 {
		angle = 0
		for _, side := range stream.SideData {
			if side.Rotation != 0 {
				angle = side.Rotation
				break
			}
		}
	}
	normalized := math.Mod(math.Abs(angle), 180)
	return normalized == 90
}

// DurationSeconds returns the container duration in seconds. When the
// container omits it, the longest stream duration is used. Returns 0 when
// nothing usable is reported.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	var longest float64
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// FrameRate returns the average frame rate of the first video stream.
func (r Result) FrameRate() float64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	num, den, found := strings.Cut(stream.AvgFrameRate, "/")
	if !found {
		return positive(parseFloat(num))
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 || math.IsNaN(n) || math.IsNaN(d) {
		return 0
	}
	return positive(n / d)
}

func positive(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
