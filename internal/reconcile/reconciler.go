package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mmoto/internal/config"
	"mmoto/internal/fileutil"
	"mmoto/internal/logging"
	"mmoto/internal/services"
	"mmoto/internal/transcode"
)

const stageName = "reconcile"

// Transcoder is the subset of the transcode gateway the reconciler uses.
type Transcoder interface {
	Probe(ctx context.Context, path string) (transcode.MediaInfo, error)
	Run(ctx context.Context, job transcode.Job) error
	RunWithFallback(ctx context.Context, job transcode.Job, capability transcode.Capability, crf int) (string, error)
	DetectHardware(ctx context.Context) transcode.Capability
	Concat(ctx context.Context, parts []string, output string) error
}

// Options configures a Reconciler.
type Options struct {
	Thresholds   Thresholds
	AudioBitrate string
	CRF          int
}

// OptionsFromConfig reads [reconcile] and the assembly CRF.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Thresholds:   ThresholdsFromConfig(cfg),
		AudioBitrate: cfg.Reconcile.AudioBitrate,
		CRF:          cfg.Assembly.CRF,
	}
}

// Request describes one reconcile run.
type Request struct {
	VideoPath  string
	AudioPaths []string
	OutputPath string
	WorkDir    string
	Attempts   *transcode.AttemptLog
}

// Result reports what was applied.
type Result struct {
	OutputPath string
	// AudioPath is the joined narration, kept as a run artifact.
	AudioPath string
	// Joined reports that AudioPath holds every narration file back to back.
	Joined       bool
	Decision     Decision
	VideoSeconds float64
	AudioSeconds float64
	// Muxed is false when the narration could not be attached.
	Muxed        bool
	Degradations []services.Degradation
}

// Reconciler matches video length to narration and muxes the two.
type Reconciler struct {
	tc     Transcoder
	opts   Options
	logger *slog.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(tc Transcoder, opts Options, logger *slog.Logger) *Reconciler {
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if strings.TrimSpace(opts.AudioBitrate) == "" {
		opts.AudioBitrate = "256k"
	}
	return &Reconciler{tc: tc, opts: opts, logger: logging.NewComponentLogger(logger, "reconcile")}
}

// Reconcile produces req.OutputPath. Errors are returned only for missing
// inputs or when even the silent fallback copy fails.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	if _, err := os.Stat(req.VideoPath); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, stageName, "reconcile", "assembled video missing", err)
	}
	if len(req.AudioPaths) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "reconcile", "no narration audio", nil)
	}
	for _, path := range req.AudioPaths {
		if _, err := os.Stat(path); err != nil {
			return Result{}, services.Wrap(services.ErrNotFound, stageName, "reconcile", "narration file missing", err)
		}
	}
	workDir := req.WorkDir
	if strings.TrimSpace(workDir) == "" {
		workDir = filepath.Dir(req.OutputPath)
	}

	result := Result{OutputPath: req.OutputPath}
	var intermediates []string
	defer func() { r.cleanup(logger, intermediates) }()

	audioPath, merged := r.mergeAudio(ctx, logger, req, workDir, &result)
	result.AudioPath = audioPath
	result.Joined = merged

	if info, err := r.tc.Probe(ctx, req.VideoPath); err == nil {
		result.VideoSeconds = info.DurationSeconds
	} else {
		logger.Debug("video probe failed", logging.Error(err))
	}
	result.AudioSeconds = r.audioSeconds(ctx, logger, audioPath, req.AudioPaths, merged)
	result.Decision = Decide(result.VideoSeconds, result.AudioSeconds, r.opts.Thresholds)

	logger.Info("duration decision",
		logging.Args(append(logging.DecisionAttrs("reconcile", string(result.Decision.Action), decisionReason(result)),
			logging.String(logging.FieldEventType, "reconcile_decision"),
			logging.Float64("video_seconds", result.VideoSeconds),
			logging.Float64("audio_seconds", result.AudioSeconds),
			logging.Float64("factor", result.Decision.Factor),
			logging.Float64("target_seconds", result.Decision.TargetSeconds),
		)...)...,
	)

	video := req.VideoPath
	if adjusted, ok := r.adjust(ctx, logger, req, workDir, &result); ok {
		video = adjusted
		intermediates = append(intermediates, adjusted)
	}

	if r.mux(ctx, logger, req, video, audioPath) {
		result.Muxed = true
		return result, nil
	}

	if err := fileutil.CopyFileAtomic(video, req.OutputPath); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "fallback copy", "could not copy silent video", err)
	}
	result.Degradations = append(result.Degradations, services.Degradation{
		Stage: stageName, Kind: services.DegradationReconcile,
		Detail: "narration could not be attached; final video is silent",
	})
	logging.WarnWithContext(logger, "narration mux failed; continuing with silent video", "reconcile_mux_failed",
		logging.String("output", req.OutputPath),
		logging.String(logging.FieldImpact, "final video has no narration"),
		logging.String(logging.FieldErrorHint, "inspect attempts.log for ffmpeg stderr"),
	)
	return result, nil
}

func decisionReason(res Result) string {
	switch res.Decision.Action {
	case ActionSlow:
		return fmt.Sprintf("narration %.2fs longer than video %.2fs", res.AudioSeconds, res.VideoSeconds)
	case ActionTrim:
		return fmt.Sprintf("video %.2fs longer than narration %.2fs", res.VideoSeconds, res.AudioSeconds)
	default:
		return "durations within tolerance"
	}
}

// mergeAudio joins narration files. A single file is used as is.
func (r *Reconciler) mergeAudio(ctx context.Context, logger *slog.Logger, req Request, workDir string, result *Result) (string, bool) {
	if len(req.AudioPaths) == 1 {
		return req.AudioPaths[0], false
	}
	ext := filepath.Ext(req.AudioPaths[0])
	if ext == "" {
		ext = ".mp3"
	}
	merged := filepath.Join(workDir, "merged_audio"+ext)
	started := time.Now()
	err := r.tc.Concat(ctx, req.AudioPaths, merged)
	r.record(req, "concat_audio", err, started)
	if err == nil {
		return merged, true
	}

	reencoded := filepath.Join(workDir, "merged_audio.m4a")
	inputs := make([]transcode.Input, 0, len(req.AudioPaths))
	var graph strings.Builder
	for i, path := range req.AudioPaths {
		inputs = append(inputs, transcode.Input{Path: path})
		fmt.Fprintf(&graph, "[%d:a]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=0:a=1[a]", len(req.AudioPaths))
	started = time.Now()
	err = r.tc.Run(ctx, transcode.Job{
		Inputs:        inputs,
		FilterComplex: graph.String(),
		OutputOptions: []string{"-map", "[a]", "-c:a", "aac", "-b:a", r.opts.AudioBitrate},
		Output:        reencoded,
	})
	r.record(req, "concat_audio_reencode", err, started)
	if err == nil {
		return reencoded, true
	}

	result.Degradations = append(result.Degradations, services.Degradation{
		Stage: stageName, Kind: services.DegradationReconcile,
		Detail: fmt.Sprintf("narration files could not be joined; using %s only", filepath.Base(req.AudioPaths[0])),
	})
	logging.WarnWithContext(logger, "narration join failed; using first file", "audio_concat_failed",
		logging.Int("files", len(req.AudioPaths)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "part of the narration is missing"),
	)
	return req.AudioPaths[0], false
}

func (r *Reconciler) audioSeconds(ctx context.Context, logger *slog.Logger, audioPath string, parts []string, merged bool) float64 {
	if info, err := r.tc.Probe(ctx, audioPath); err == nil && info.DurationSeconds > 0 {
		return info.DurationSeconds
	} else if err != nil {
		logger.Debug("audio probe failed", logging.String("path", audioPath), logging.Error(err))
	}
	if !merged {
		return 0
	}
	// Sum of the parts when the joined file cannot be probed.
	total := 0.0
	for _, part := range parts {
		if info, err := r.tc.Probe(ctx, part); err == nil {
			total += info.DurationSeconds
		}
	}
	return total
}

// adjust applies the decision. It reports the adjusted path, or false when the
// original video should be used.
func (r *Reconciler) adjust(ctx context.Context, logger *slog.Logger, req Request, workDir string, result *Result) (string, bool) {
	decision := result.Decision
	switch decision.Action {
	case ActionSlow:
		output := filepath.Join(workDir, "adjusted_video.mp4")
		job := transcode.Job{
			Inputs:        []transcode.Input{{Path: req.VideoPath}},
			FilterGraph:   "setpts=" + strconv.FormatFloat(decision.Factor, 'f', 6, 64) + "*PTS",
			OutputOptions: []string{"-an"},
			Output:        output,
		}
		started := time.Now()
		_, err := r.tc.RunWithFallback(ctx, job, r.tc.DetectHardware(ctx), r.opts.CRF)
		r.record(req, "slow_video", err, started)
		if err != nil {
			r.degrade(logger, result, "slow-down re-encode failed; using unmodified video", err)
			return "", false
		}
		return output, true
	case ActionTrim:
		output := filepath.Join(workDir, "trimmed_video.mp4")
		job := transcode.Job{
			Inputs:        []transcode.Input{{Path: req.VideoPath}},
			OutputOptions: []string{"-t", strconv.FormatFloat(decision.TargetSeconds, 'f', 3, 64), "-c", "copy", "-an"},
			Output:        output,
		}
		started := time.Now()
		err := r.tc.Run(ctx, job)
		r.record(req, "trim_video", err, started)
		if err != nil {
			r.degrade(logger, result, "trim failed; using unmodified video", err)
			return "", false
		}
		return output, true
	default:
		return "", false
	}
}

func (r *Reconciler) degrade(logger *slog.Logger, result *Result, detail string, err error) {
	result.Degradations = append(result.Degradations, services.Degradation{Stage: stageName, Kind: services.DegradationReconcile, Detail: detail})
	logging.WarnWithContext(logger, detail, "reconcile_adjust_failed",
		logging.String("action", string(result.Decision.Action)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "video and narration lengths differ"),
	)
}

// mux attaches audio, retrying once with a reduced parameter set.
func (r *Reconciler) mux(ctx context.Context, logger *slog.Logger, req Request, video, audio string) bool {
	inputs := []transcode.Input{{Path: video}, {Path: audio}}
	attempts := []struct {
		name string
		opts []string
	}{
		{"mux_resample", []string{"-map", "0:v", "-map", "1:a", "-c:v", "copy", "-c:a", "aac", "-b:a", r.opts.AudioBitrate, "-af", "aresample=async=1000", "-shortest"}},
		{"mux_plain", []string{"-c:v", "copy", "-c:a", "aac", "-shortest"}},
	}
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return false
		}
		started := time.Now()
		err := r.tc.Run(ctx, transcode.Job{Inputs: inputs, OutputOptions: attempt.opts, Output: req.OutputPath})
		r.record(req, attempt.name, err, started)
		if err == nil {
			logger.Info("narration attached",
				logging.String(logging.FieldEventType, "reconcile_mux"),
				logging.String("strategy", attempt.name),
				logging.String("output", req.OutputPath),
			)
			return true
		}
		logger.Info("narration mux attempt failed",
			logging.String(logging.FieldEventType, "reconcile_mux"),
			logging.String("strategy", attempt.name),
			logging.Error(err),
		)
	}
	return false
}

func (r *Reconciler) record(req Request, strategy string, err error, started time.Time) {
	_ = req.Attempts.Record(transcode.AttemptRecord{Stage: stageName, Strategy: strategy, Err: err, Elapsed: time.Since(started)})
}

func (r *Reconciler) cleanup(logger *slog.Logger, paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("intermediate cleanup failed",
				logging.String(logging.FieldEventType, "cleanup_failed"),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
		}
	}
}
