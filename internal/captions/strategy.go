package captions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mmoto/internal/fileutil"
	"mmoto/internal/language"
	"mmoto/internal/transcode"
)

// Strategy names, in chain order.
const (
	StrategySoftMux       = "soft_mux"
	StrategyStyledBurn    = "styled_burn"
	StrategySimpleBurn    = "simple_burn"
	StrategySingleCaption = "single_caption"
	StrategyCopyInput     = "copy_input"
)

// Transcoder is the subset of the transcode gateway the strategies use.
type Transcoder interface {
	Run(ctx context.Context, job transcode.Job) error
	RunWithFallback(ctx context.Context, job transcode.Job, capability transcode.Capability, crf int) (string, error)
	DetectHardware(ctx context.Context) transcode.Capability
}

// Input is shared by every strategy of one render.
type Input struct {
	VideoPath   string
	OutputPath  string
	WorkDir     string
	Cues        []Cue
	Text        string
	Duration    float64
	Language    string
	Style       Style
	SimpleStyle Style
	FontDir     string
	CRF         int
}

// Attempt describes a successful strategy run.
type Attempt struct {
	Strategy   string
	OutputPath string
	Encoder    string
}

// Strategy is one way of putting captions on the video.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, in Input) (Attempt, error)
}

// DefaultChain returns the strategies in fallback order.
func DefaultChain(tc Transcoder) []Strategy {
	return []Strategy{
		softMux{tc: tc},
		burnIn{tc: tc, name: StrategyStyledBurn, file: "subtitles.ass"},
		burnIn{tc: tc, name: StrategySimpleBurn, file: "subtitles_simple.ass", simple: true},
		singleCaption{tc: tc},
		copyInput{},
	}
}

var errNoCues = errors.New("no caption cues")

// softMux adds an SRT track as mov_text without touching the video stream.
type softMux struct{ tc Transcoder }

func (softMux) Name() string { return StrategySoftMux }

func (s softMux) Attempt(ctx context.Context, in Input) (Attempt, error) {
	if len(in.Cues) == 0 {
		return Attempt{}, errNoCues
	}
	srtPath := filepath.Join(in.WorkDir, "subtitles.srt")
	if err := WriteSRT(srtPath, in.Cues); err != nil {
		return Attempt{}, err
	}
	job := transcode.Job{
		Inputs: []transcode.Input{{Path: in.VideoPath}, {Path: srtPath}},
		OutputOptions: []string{
			"-map", "0:v", "-map", "0:a?", "-map", "1:0",
			"-c:v", "copy", "-c:a", "copy", "-c:s", "mov_text",
			"-metadata:s:s:0", "language=" + language.ToISO3(in.Language),
		},
		Output: in.OutputPath,
	}
	if err := s.tc.Run(ctx, job); err != nil {
		return Attempt{}, err
	}
	return Attempt{Strategy: StrategySoftMux, OutputPath: in.OutputPath}, nil
}

// burnIn renders an ASS file into the picture.
type burnIn struct {
	tc     Transcoder
	name   string
	file   string
	simple bool
}

func (b burnIn) Name() string { return b.name }

func (b burnIn) Attempt(ctx context.Context, in Input) (Attempt, error) {
	if len(in.Cues) == 0 {
		return Attempt{}, errNoCues
	}
	style := in.Style
	if b.simple {
		style = in.SimpleStyle
	}
	return burnASS(ctx, b.tc, b.name, filepath.Join(in.WorkDir, b.file), in.Cues, style, in)
}

// singleCaption shows the whole transcript for the full duration.
type singleCaption struct{ tc Transcoder }

func (singleCaption) Name() string { return StrategySingleCaption }

func (s singleCaption) Attempt(ctx context.Context, in Input) (Attempt, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Attempt{}, errors.New("no transcript text")
	}
	duration := in.Duration
	if duration <= 0 && len(in.Cues) > 0 {
		duration = in.Cues[len(in.Cues)-1].End
	}
	cue := SingleCue(text, duration, DefaultCueOptions())
	return burnASS(ctx, s.tc, StrategySingleCaption, filepath.Join(in.WorkDir, "subtitles_single.ass"), []Cue{cue}, in.SimpleStyle, in)
}

func burnASS(ctx context.Context, tc Transcoder, name, assPath string, cues []Cue, style Style, in Input) (Attempt, error) {
	if err := WriteASS(assPath, cues, style); err != nil {
		return Attempt{}, err
	}
	job := transcode.Job{
		Inputs:        []transcode.Input{{Path: in.VideoPath}},
		FilterGraph:   subtitleFilter(assPath, in.FontDir),
		OutputOptions: []string{"-c:a", "copy", "-movflags", "+faststart"},
		Output:        in.OutputPath,
	}
	encoder, err := tc.RunWithFallback(ctx, job, tc.DetectHardware(ctx), in.CRF)
	if err != nil {
		return Attempt{}, err
	}
	return Attempt{Strategy: name, OutputPath: in.OutputPath, Encoder: encoder}, nil
}

// copyInput is the terminal strategy.
type copyInput struct{}

func (copyInput) Name() string { return StrategyCopyInput }

func (copyInput) Attempt(_ context.Context, in Input) (Attempt, error) {
	if filepath.Clean(in.VideoPath) == filepath.Clean(in.OutputPath) {
		return Attempt{Strategy: StrategyCopyInput, OutputPath: in.OutputPath}, nil
	}
	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0o755); err != nil {
		return Attempt{}, fmt.Errorf("create output dir: %w", err)
	}
	if err := fileutil.CopyFileAtomic(in.VideoPath, in.OutputPath); err != nil {
		return Attempt{}, fmt.Errorf("copy uncaptioned video: %w", err)
	}
	return Attempt{Strategy: StrategyCopyInput, OutputPath: in.OutputPath}, nil
}
