package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"mmoto/internal/config"
	"mmoto/internal/fileutil"
	"mmoto/internal/footage"
	"mmoto/internal/logging"
	"mmoto/internal/services"
	"mmoto/internal/transcode"
)

const stageName = "assembly"

// Transcoder is the subset of the transcode gateway used for assembly.
type Transcoder interface {
	Probe(ctx context.Context, path string) (transcode.MediaInfo, error)
	Run(ctx context.Context, job transcode.Job) error
	RunWithFallback(ctx context.Context, job transcode.Job, capability transcode.Capability, crf int) (string, error)
	DetectHardware(ctx context.Context) transcode.Capability
	Concat(ctx context.Context, parts []string, output string) error
}

// Options configures assembly.
type Options struct {
	Output             Frame
	FPS                int
	MaxClips           int
	PrimaryClips       int
	Limits             Limits
	GlobalCapSeconds   float64
	Concurrency        int
	PlaceholderSeconds float64
	PlaceholderColor   string
	CRF                int
}

// OptionsFromConfig reads [output] and [assembly].
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Output:             Frame{Width: cfg.Output.Width, Height: cfg.Output.Height},
		FPS:                cfg.Output.FPS,
		MaxClips:           cfg.Assembly.MaxClips,
		PrimaryClips:       cfg.Assembly.PrimaryClips,
		Limits:             LimitsFromConfig(cfg),
		GlobalCapSeconds:   cfg.Assembly.GlobalCapSeconds,
		Concurrency:        transcode.DefaultConcurrency(cfg.Assembly.TranscodeConcurrency),
		PlaceholderSeconds: cfg.Assembly.PlaceholderSeconds,
		PlaceholderColor:   cfg.Assembly.PlaceholderColor,
		CRF:                cfg.Assembly.CRF,
	}
}

func (o Options) withDefaults() Options {
	if o.Output.Width <= 0 || o.Output.Height <= 0 {
		o.Output = Frame{Width: 1080, Height: 1920}
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.MaxClips <= 0 {
		o.MaxClips = DefaultMaxClips
	}
	if o.PrimaryClips <= 0 {
		o.PrimaryClips = DefaultPrimaryClips
	}
	if o.Limits.PerClipMaxSeconds <= 0 {
		o.Limits = DefaultLimits()
	}
	if o.GlobalCapSeconds <= 0 {
		o.GlobalCapSeconds = DefaultGlobalCapSeconds
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	if o.PlaceholderSeconds <= 0 {
		o.PlaceholderSeconds = 5
	}
	if strings.TrimSpace(o.PlaceholderColor) == "" {
		o.PlaceholderColor = "black"
	}
	if o.CRF <= 0 {
		o.CRF = 18
	}
	return o
}

// Request describes one assembly.
type Request struct {
	Clips          []footage.Clip
	PrimaryKeyword string
	OutputPath     string
	WorkDir        string
	// PlanPath receives the YAML plan when set.
	PlanPath string
	Rand     *rand.Rand
}

// PlannedSegment records how one selected clip was used.
type PlannedSegment struct {
	Index    int     `yaml:"index"`
	ClipID   string  `yaml:"clip_id"`
	Keyword  string  `yaml:"keyword"`
	Source   string  `yaml:"source"`
	Layout   Layout  `yaml:"layout"`
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
	Loop     bool    `yaml:"loop"`
	Encoder  string  `yaml:"encoder"`
	Path     string  `yaml:"-"`
}

// Result describes the assembled video.
type Result struct {
	OutputPath   string
	Segments     []PlannedSegment
	TotalSeconds float64
	Placeholder  bool
	Degradations []services.Degradation
}

// Plan is the assembly_plan.yaml document.
type Plan struct {
	PrimaryKeyword     string           `yaml:"primary_keyword"`
	Selected           int              `yaml:"selected"`
	PerClipCapSeconds  float64          `yaml:"per_clip_cap_seconds"`
	GlobalCapSeconds   float64          `yaml:"global_cap_seconds"`
	TotalSeconds       float64          `yaml:"total_seconds"`
	Placeholder        bool             `yaml:"placeholder"`
	Segments           []PlannedSegment `yaml:"segments"`
	Dropped            []string         `yaml:"dropped,omitempty"`
	Failed             []string         `yaml:"failed,omitempty"`
	PlaceholderSeconds float64          `yaml:"placeholder_seconds,omitempty"`
}

// Assembler conforms and joins clips.
type Assembler struct {
	tc     Transcoder
	opts   Options
	logger *slog.Logger
}

// NewAssembler constructs an assembler.
func NewAssembler(tc Transcoder, opts Options, logger *slog.Logger) *Assembler {
	return &Assembler{
		tc:     tc,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "assembly"),
	}
}

// Assemble selects, transforms and concatenates clips into req.OutputPath.
// Clip-level failures are absorbed; the only errors are cancellation and a
// failure to produce any output at all.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, a.logger)
	if strings.TrimSpace(req.OutputPath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "assemble", "output path required", nil)
	}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(req.OutputPath)
	}

	selected := Select(req.Clips, req.PrimaryKeyword, a.opts.MaxClips, a.opts.PrimaryClips, req.Rand)
	perClip := PerClipCap(len(selected), a.opts.Limits)
	logger.Info("clips selected",
		logging.Args(append(logging.DecisionAttrs("clip_selection", strconv.Itoa(len(selected)), "primary keyword first"),
			logging.String("primary_keyword", req.PrimaryKeyword),
			logging.Int("candidates", len(req.Clips)),
			logging.Float64("per_clip_cap_seconds", perClip),
		)...)...,
	)

	plan := Plan{
		PrimaryKeyword:    req.PrimaryKeyword,
		Selected:          len(selected),
		PerClipCapSeconds: perClip,
		GlobalCapSeconds:  a.opts.GlobalCapSeconds,
	}
	var result Result

	segments, failures, err := a.transformAll(ctx, logger, selected, perClip, workDir)
	if err != nil {
		a.cleanup(logger, segments)
		return Result{}, err
	}
	for _, f := range failures {
		plan.Failed = append(plan.Failed, f.clipID)
		result.Degradations = append(result.Degradations, services.Degradation{
			Stage: stageName, Kind: services.DegradationClip,
			Detail: fmt.Sprintf("clip %s: %v", f.clipID, f.err),
		})
	}

	kept, dropped := enforceGlobalCap(segments, a.opts.GlobalCapSeconds)
	for _, seg := range dropped {
		plan.Dropped = append(plan.Dropped, seg.ClipID)
	}
	if len(dropped) > 0 {
		logger.Info("clips dropped by global cap",
			logging.Args(append(logging.DecisionAttrs("global_cap", "dropped", "total would exceed cap"),
				logging.Int("dropped", len(dropped)),
				logging.Float64("global_cap_seconds", a.opts.GlobalCapSeconds),
			)...)...,
		)
	}

	if len(kept) == 0 {
		if err := a.placeholder(ctx, req.OutputPath); err != nil {
			a.cleanup(logger, segments)
			return Result{}, err
		}
		result.OutputPath = req.OutputPath
		result.Placeholder = true
		result.TotalSeconds = a.opts.PlaceholderSeconds
		result.Degradations = append(result.Degradations, services.Degradation{
			Stage: stageName, Kind: services.DegradationPlaceholder,
			Detail: fmt.Sprintf("no usable clips among %d candidates", len(req.Clips)),
		})
		logging.WarnWithContext(logger, "no usable clips; wrote placeholder video", "assembly_placeholder",
			logging.Int("candidates", len(req.Clips)),
			logging.Float64("placeholder_seconds", a.opts.PlaceholderSeconds),
			logging.String(logging.FieldImpact, "final video shows a solid color"),
			logging.String(logging.FieldErrorHint, "check footage provider results and clip transforms in attempts.log"),
		)
	} else {
		if err := a.join(ctx, logger, kept, req.OutputPath); err != nil {
			a.cleanup(logger, segments)
			return Result{}, err
		}
		result.OutputPath = req.OutputPath
		result.Segments = kept
		for _, seg := range kept {
			result.TotalSeconds += seg.Duration
		}
	}
	a.cleanup(logger, segments)

	plan.TotalSeconds = result.TotalSeconds
	plan.Placeholder = result.Placeholder
	plan.Segments = result.Segments
	if result.Placeholder {
		plan.PlaceholderSeconds = a.opts.PlaceholderSeconds
	}
	if req.PlanPath != "" {
		if err := WritePlan(req.PlanPath, plan); err != nil {
			logging.WarnWithContext(logger, "failed to write assembly plan", "assembly_plan_write_failed",
				logging.String("path", req.PlanPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "plan unavailable for inspection"),
			)
		}
	}

	logger.Info("assembly complete",
		logging.String(logging.FieldEventType, "assembly_complete"),
		logging.String("output", result.OutputPath),
		logging.Int("segments", len(result.Segments)),
		logging.Float64("total_seconds", result.TotalSeconds),
		logging.Bool("placeholder", result.Placeholder),
	)
	return result, nil
}

type clipFailure struct {
	clipID string
	err    error
}

// transformAll conforms the selected clips concurrently. The returned slice
// is in selection order and holds nil for clips that failed.
func (a *Assembler) transformAll(ctx context.Context, logger *slog.Logger, selected []footage.Clip, perClip float64, workDir string) ([]*PlannedSegment, []clipFailure, error) {
	segments := make([]*PlannedSegment, len(selected))
	errs := make([]error, len(selected))
	if len(selected) == 0 {
		return segments, nil, nil
	}
	capability := a.tc.DetectHardware(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, clip := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seg, err := a.transform(gctx, i, clip, perClip, workDir, capability)
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return err
				}
				errs[i] = err
				logger.Info("clip transform failed",
					logging.String(logging.FieldEventType, "clip_transform"),
					logging.String("clip", clip.ID),
					logging.Error(err),
				)
				return nil
			}
			segments[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return segments, nil, err
	}
	if err := ctx.Err(); err != nil {
		return segments, nil, err
	}

	var failures []clipFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, clipFailure{clipID: selected[i].ID, err: err})
		}
	}
	return segments, failures, nil
}

func (a *Assembler) transform(ctx context.Context, index int, clip footage.Clip, perClip float64, workDir string, capability transcode.Capability) (*PlannedSegment, error) {
	if !fileutil.NonEmpty(clip.Path) {
		return nil, services.Wrap(services.ErrNotFound, stageName, "transform", "clip file missing", nil)
	}
	info, err := a.tc.Probe(ctx, clip.Path)
	if err != nil {
		return nil, err
	}
	if info.DurationSeconds <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "transform", "clip has no duration", nil)
	}

	src := Frame{Width: info.Width, Height: info.Height}
	layout := ChooseLayout(src.Width, src.Height, a.opts.Output.Width, a.opts.Output.Height)
	span := PlanSegment(info.DurationSeconds, perClip)
	graph := FilterGraph(layout, src, a.opts.Output, a.opts.FPS)

	input := transcode.Input{Path: clip.Path}
	if span.Loop {
		input.Options = []string{"-stream_loop", "-1"}
	} else if span.Start > 0 {
		input.Options = []string{"-ss", seconds(span.Start)}
	}
	out := filepath.Join(workDir, fmt.Sprintf("segment_%02d.mp4", index+1))
	job := transcode.Job{
		Inputs:        []transcode.Input{input},
		OutputOptions: []string{"-t", seconds(span.Duration), "-an", "-r", strconv.Itoa(a.opts.FPS)},
		Output:        out,
	}
	if graph.Complex {
		job.FilterComplex = graph.Filter
		job.OutputOptions = append([]string{"-map", "[v]"}, job.OutputOptions...)
	} else {
		job.FilterGraph = graph.Filter
	}

	encoder, err := a.tc.RunWithFallback(ctx, job, capability, a.opts.CRF)
	if err != nil {
		return nil, err
	}
	return &PlannedSegment{
		Index:    index,
		ClipID:   clip.ID,
		Keyword:  clip.Keyword,
		Source:   clip.Path,
		Layout:   layout,
		Start:    span.Start,
		Duration: span.Duration,
		Loop:     span.Loop,
		Encoder:  encoder,
		Path:     out,
	}, nil
}

// enforceGlobalCap walks segments in order and stops before the first one
// that would push the total past limit. While the kept total still exceeds
// limit, the longest kept segment is dropped. Order is preserved.
func enforceGlobalCap(segments []*PlannedSegment, limit float64) (kept, dropped []PlannedSegment) {
	total := 0.0
	for i, seg := range segments {
		if seg == nil {
			continue
		}
		if len(kept) > 0 && total+seg.Duration > limit {
			for _, rest := range segments[i:] {
				if rest != nil {
					dropped = append(dropped, *rest)
				}
			}
			break
		}
		kept = append(kept, *seg)
		total += seg.Duration
	}
	for total > limit && len(kept) > 0 {
		longest := 0
		for i := range kept {
			if kept[i].Duration > kept[longest].Duration {
				longest = i
			}
		}
		total -= kept[longest].Duration
		dropped = append(dropped, kept[longest])
		kept = append(kept[:longest], kept[longest+1:]...)
	}
	return kept, dropped
}

// join concatenates losslessly and falls back to a concat filter re-encode.
func (a *Assembler) join(ctx context.Context, logger *slog.Logger, segments []PlannedSegment, output string) error {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.Path
	}
	err := a.tc.Concat(ctx, parts, output)
	if err == nil || ctx.Err() != nil {
		return err
	}
	logging.WarnWithContext(logger, "lossless concat failed; re-encoding", "assembly_concat_fallback",
		logging.Int("parts", len(parts)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "slower assembly"),
	)

	inputs := make([]transcode.Input, len(parts))
	var labels strings.Builder
	for i, part := range parts {
		inputs[i] = transcode.Input{Path: part}
		fmt.Fprintf(&labels, "[%d:v]", i)
	}
	job := transcode.Job{
		Inputs:        inputs,
		FilterComplex: fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", labels.String(), len(parts)),
		OutputOptions: []string{"-map", "[v]", "-an"},
		Output:        output,
	}
	if _, err := a.tc.RunWithFallback(ctx, job, a.tc.DetectHardware(ctx), a.opts.CRF); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "concat", "could not join clips", err)
	}
	return nil
}

// placeholder renders a solid-color clip of the target size.
func (a *Assembler) placeholder(ctx context.Context, output string) error {
	source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
		a.opts.PlaceholderColor, a.opts.Output.Width, a.opts.Output.Height, a.opts.FPS, seconds(a.opts.PlaceholderSeconds))
	job := transcode.Job{
		Inputs:        []transcode.Input{{Path: source, Options: []string{"-f", "lavfi"}}},
		OutputOptions: append(transcode.EncoderArgs(transcode.Software(), a.opts.CRF), "-t", seconds(a.opts.PlaceholderSeconds), "-an"),
		Output:        output,
	}
	if err := a.tc.Run(ctx, job); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "placeholder", "could not render placeholder video", err)
	}
	return nil
}

func (a *Assembler) cleanup(logger *slog.Logger, segments []*PlannedSegment) {
	for _, seg := range segments {
		if seg == nil || seg.Path == "" {
			continue
		}
		if err := os.Remove(seg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove segment",
				logging.String(logging.FieldEventType, "cleanup_failed"),
				logging.String("path", seg.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediate file left in work dir"),
			)
		}
	}
}

// WritePlan writes plan as YAML.
func WritePlan(path string, plan Plan) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// ReadPlan loads a plan written by WritePlan.
func ReadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}
