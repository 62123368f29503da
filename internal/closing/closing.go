package closing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mmoto/internal/config"
	"mmoto/internal/fileutil"
	"mmoto/internal/logging"
	"mmoto/internal/services"
	"mmoto/internal/transcode"
)

const stageName = "closing"

// Join strategy names as they appear in the attempt log.
const (
	StrategyConcatFilter  = "concat_filter"
	StrategyTransportJoin = "mpegts_join"
	StrategyConcatDemuxer = "concat_demuxer"
	StrategyCopyMain      = "copy_main"
)

// Transcoder is the subset of the transcode gateway used here.
type Transcoder interface {
	Probe(ctx context.Context, path string) (transcode.MediaInfo, error)
	Run(ctx context.Context, job transcode.Job) error
	RunWithFallback(ctx context.Context, job transcode.Job, capability transcode.Capability, crf int) (string, error)
	DetectHardware(ctx context.Context) transcode.Capability
	Concat(ctx context.Context, parts []string, output string) error
}

// Options sets the frame the closing clip is conformed to.
type Options struct {
	Width  int
	Height int
	FPS    int
	CRF    int
}

// OptionsFromConfig reads [output] and the assembly CRF.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{Width: cfg.Output.Width, Height: cfg.Output.Height, FPS: cfg.Output.FPS, CRF: cfg.Assembly.CRF}
}

// Request is one append.
type Request struct {
	VideoPath   string
	ClosingPath string
	OutputPath  string
	WorkDir     string
	Attempts    *transcode.AttemptLog
}

// Outcome reports how the output was produced.
type Outcome struct {
	OutputPath   string
	Strategy     string
	Appended     bool
	Degradations []services.Degradation
}

// Appender joins a closing clip onto a video.
type Appender struct {
	tc     Transcoder
	opts   Options
	logger *slog.Logger
}

// NewAppender constructs an appender.
func NewAppender(tc Transcoder, opts Options, logger *slog.Logger) *Appender {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1080, 1920
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.CRF <= 0 {
		opts.CRF = 18
	}
	return &Appender{tc: tc, opts: opts, logger: logging.NewComponentLogger(logger, "closing")}
}

type joinFunc func(ctx context.Context, req Request) error

// Append writes req.VideoPath followed by req.ClosingPath to req.OutputPath.
// A missing closing clip copies the video unchanged. Errors are returned only
// when the main video is missing or cannot be copied.
func (a *Appender) Append(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, a.logger)
	if _, err := os.Stat(req.VideoPath); err != nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, stageName, "append", "main video missing", err)
	}
	if req.WorkDir == "" {
		req.WorkDir = filepath.Dir(req.OutputPath)
	}

	if strings.TrimSpace(req.ClosingPath) == "" || !fileutil.NonEmpty(req.ClosingPath) {
		logger.Info("no closing video; copying main video",
			logging.Args(append(logging.DecisionAttrs("closing_scene", "skipped", "closing video not configured or missing"),
				logging.String("closing_path", req.ClosingPath),
			)...)...,
		)
		if err := fileutil.CopyFileAtomic(req.VideoPath, req.OutputPath); err != nil {
			return Outcome{}, services.Wrap(services.ErrExternalTool, stageName, "copy", "could not copy video", err)
		}
		return Outcome{OutputPath: req.OutputPath, Strategy: StrategyCopyMain}, nil
	}

	chain := []struct {
		name string
		run  joinFunc
	}{
		{StrategyConcatFilter, a.concatFilter},
		{StrategyTransportJoin, a.transportJoin},
		{StrategyConcatDemuxer, func(ctx context.Context, req Request) error {
			return a.tc.Concat(ctx, []string{req.VideoPath, req.ClosingPath}, req.OutputPath)
		}},
	}
	// Every join maps only video and audio, so a soft subtitle track on the
	// main video does not survive.
	subtitled := false
	if info, err := a.tc.Probe(ctx, req.VideoPath); err == nil {
		subtitled = info.HasSubtitles
	}

	var errs []string
	for _, step := range chain {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		err := step.run(ctx, req)
		elapsed := time.Since(started)
		if logErr := req.Attempts.Record(transcode.AttemptRecord{Stage: stageName, Strategy: step.name, Err: err, Elapsed: elapsed}); logErr != nil {
			logger.Debug("attempt log write failed", logging.Error(logErr))
		}
		if err == nil {
			logger.Info("closing scene appended",
				logging.String(logging.FieldEventType, "closing_appended"),
				logging.String("strategy", step.name),
				logging.Duration("elapsed", elapsed),
				logging.String("output", req.OutputPath),
			)
			outcome := Outcome{OutputPath: req.OutputPath, Strategy: step.name, Appended: true}
			if subtitled {
				outcome.Degradations = append(outcome.Degradations, services.Degradation{
					Stage: stageName, Kind: services.DegradationCaptions,
					Detail: "soft subtitle track dropped when the closing scene was joined",
				})
				logging.WarnWithContext(logger, "subtitle track lost in closing join", "closing_subtitles_dropped",
					logging.String("strategy", step.name),
					logging.String(logging.FieldImpact, "final video has no captions"),
					logging.String(logging.FieldErrorHint, "burn captions in before appending a closing scene"),
				)
			}
			return outcome, nil
		}
		errs = append(errs, step.name+": "+err.Error())
		logger.Info("closing strategy failed",
			logging.String(logging.FieldEventType, "closing_attempt"),
			logging.String("strategy", step.name),
			logging.Error(err),
		)
	}

	if err := fileutil.CopyFileAtomic(req.VideoPath, req.OutputPath); err != nil {
		return Outcome{}, services.Wrap(services.ErrExternalTool, stageName, "copy", "could not copy video", err)
	}
	detail := "closing scene not appended"
	if len(errs) > 0 {
		detail += ": " + strings.Join(errs, "; ")
	} else if ctx.Err() != nil {
		detail += ": " + ctx.Err().Error()
	}
	logging.WarnWithContext(logger, "closing scene could not be appended", "closing_degraded",
		logging.Strings("errors", errs),
		logging.String(logging.FieldImpact, "final video has no closing scene"),
		logging.String(logging.FieldErrorHint, "check attempts.log for the ffmpeg stderr of each join"),
	)
	return Outcome{
		OutputPath:   req.OutputPath,
		Strategy:     StrategyCopyMain,
		Degradations: []services.Degradation{{Stage: stageName, Kind: services.DegradationClosing, Detail: detail}},
	}, nil
}

// concatFilter re-encodes both clips through the concat filter. The closing
// clip is letterboxed into the output frame and a side without audio gets
// generated silence of matching length.
func (a *Appender) concatFilter(ctx context.Context, req Request) error {
	mainInfo, err := a.tc.Probe(ctx, req.VideoPath)
	if err != nil {
		return err
	}
	closingInfo, err := a.tc.Probe(ctx, req.ClosingPath)
	if err != nil {
		return err
	}

	inputs := []transcode.Input{{Path: req.VideoPath}, {Path: req.ClosingPath}}
	audioLabel := func(idx int, info transcode.MediaInfo) string {
		if info.HasAudio {
			return fmt.Sprintf("[%d:a]", idx)
		}
		inputs = append(inputs, transcode.Input{
			Path:    "anullsrc=channel_layout=stereo:sample_rate=44100",
			Options: []string{"-f", "lavfi", "-t", fmt.Sprintf("%.3f", info.DurationSeconds)},
		})
		return fmt.Sprintf("[%d:a]", len(inputs)-1)
	}
	mainAudio := audioLabel(0, mainInfo)
	closingAudio := audioLabel(1, closingInfo)

	w, h, fps := a.opts.Width, a.opts.Height, a.opts.FPS
	graph := strings.Join([]string{
		fmt.Sprintf("[0:v]scale=%d:%d,setsar=1,fps=%d,format=yuv420p[v0]", w, h, fps),
		fmt.Sprintf("[1:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v1]", w, h, w, h, fps),
		mainAudio + "aresample=44100[a0]",
		closingAudio + "aresample=44100[a1]",
		"[v0][a0][v1][a1]concat=n=2:v=1:a=1[outv][outa]",
	}, ";")
	job := transcode.Job{
		Inputs:        inputs,
		FilterComplex: graph,
		OutputOptions: []string{"-map", "[outv]", "-map", "[outa]", "-c:a", "aac", "-movflags", "+faststart"},
		Output:        req.OutputPath,
	}
	_, err = a.tc.RunWithFallback(ctx, job, a.tc.DetectHardware(ctx), a.opts.CRF)
	return err
}

// transportJoin remuxes both clips to MPEG-TS and joins them with the concat
// protocol without re-encoding.
func (a *Appender) transportJoin(ctx context.Context, req Request) error {
	parts := []string{
		filepath.Join(req.WorkDir, "closing_part1.ts"),
		filepath.Join(req.WorkDir, "closing_part2.ts"),
	}
	defer func() {
		for _, p := range parts {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				a.logger.Debug("failed to remove transport stream part", logging.String("path", p), logging.Error(err))
			}
		}
	}()
	for i, src := range []string{req.VideoPath, req.ClosingPath} {
		err := a.tc.Run(ctx, transcode.Job{
			Inputs:        []transcode.Input{{Path: src}},
			OutputOptions: []string{"-c", "copy", "-bsf:v", "h264_mp4toannexb", "-f", "mpegts"},
			Output:        parts[i],
		})
		if err != nil {
			return err
		}
	}
	return a.tc.Run(ctx, transcode.Job{
		Inputs:        []transcode.Input{{Path: "concat:" + parts[0] + "|" + parts[1]}},
		OutputOptions: []string{"-c", "copy", "-bsf:a", "aac_adtstoasc"},
		Output:        req.OutputPath,
	})
}
