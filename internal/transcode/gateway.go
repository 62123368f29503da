package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mmoto/internal/config"
	"mmoto/internal/fileutil"
	"mmoto/internal/logging"
	"mmoto/internal/media/ffprobe"
)

const (
	defaultTranscodeTimeout = 5 * time.Minute
	defaultProbeTimeout     = time.Minute
)

// commandRunner executes a binary and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// probeRunner inspects a media file.
type probeRunner func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures a Gateway.
type Options struct {
	FFmpegBinary     string
	FFprobeBinary    string
	HardwareAccel    bool
	TranscodeTimeout time.Duration
	ProbeTimeout     time.Duration
}

// OptionsFromConfig maps the [ffmpeg] section onto gateway options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		FFmpegBinary:     cfg.FFmpegBinary(),
		FFprobeBinary:    cfg.FFprobeBinary(),
		HardwareAccel:    cfg.FFmpeg.HardwareAccel,
		TranscodeTimeout: time.Duration(cfg.FFmpeg.TranscodeTimeoutSeconds) * time.Second,
		ProbeTimeout:     time.Duration(cfg.FFmpeg.ProbeTimeoutSeconds) * time.Second,
	}
}

// Gateway runs transcoder jobs. It is safe for concurrent use.
type Gateway struct {
	opts   Options
	logger *slog.Logger
	run    commandRunner
	probe  probeRunner

	hwOnce sync.Once
	hw     Capability
}

// NewGateway constructs a gateway with defaults filled in.
func NewGateway(opts Options, logger *slog.Logger) *Gateway {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.TranscodeTimeout <= 0 {
		opts.TranscodeTimeout = defaultTranscodeTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	return &Gateway{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "transcode"),
		run:    defaultCommandRunner,
		probe:  ffprobe.Inspect,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (g *Gateway) WithCommandRunner(r commandRunner) {
	if g != nil && r != nil {
		g.run = r
	}
}

// WithProbeRunner allows injecting a custom ffprobe implementation for tests.
func (g *Gateway) WithProbeRunner(p probeRunner) {
	if g != nil && p != nil {
		g.probe = p
	}
}

// FFmpegBinary returns the configured ffmpeg executable.
func (g *Gateway) FFmpegBinary() string { return g.opts.FFmpegBinary }

// MediaInfo is the subset of probe data the pipeline relies on.
type MediaInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
	HasAudio        bool
	HasSubtitles    bool
	FrameRate       float64
}

// Probe inspects path under the probe timeout.
func (g *Gateway) Probe(ctx context.Context, path string) (MediaInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return MediaInfo{}, &Error{Op: "ffprobe", Args: ffprobe.Args(path), ExitCode: -1, Err: err}
	}
	probeCtx, cancel := context.WithTimeout(ctx, g.opts.ProbeTimeout)
	defer cancel()

	result, err := g.probe(probeCtx, g.opts.FFprobeBinary, path)
	if err != nil {
		return MediaInfo{}, g.commandError(ctx, probeCtx, "ffprobe", ffprobe.Args(path), nil, err)
	}
	width, height := result.Dimensions()
	return MediaInfo{
		Width:           width,
		Height:          height,
		DurationSeconds: result.DurationSeconds(),
		HasAudio:        result.HasAudio(),
		HasSubtitles:    result.HasSubtitles(),
		FrameRate:       result.FrameRate(),
	}, nil
}

// Input is one ffmpeg input with the options that precede its -i flag.
type Input struct {
	Path    string
	Options []string
}

// Job describes a single ffmpeg invocation producing one output file.
type Job struct {
	Inputs []Input
	// FilterGraph is applied as a simple video filter (-vf).
	FilterGraph string
	// FilterComplex is applied with -filter_complex for multi-input graphs.
	FilterComplex string
	OutputOptions []string
	Output        string
}

// Args renders the ffmpeg argument list for job.
func (j Job) Args() []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
	for _, in := range j.Inputs {
		args = append(args, in.Options...)
		args = append(args, "-i", in.Path)
	}
	if j.FilterComplex != "" {
		args = append(args, "-filter_complex", j.FilterComplex)
	}
	if j.FilterGraph != "" {
		args = append(args, "-vf", j.FilterGraph)
	}
	args = append(args, j.OutputOptions...)
	return append(args, j.Output)
}

func (j Job) validate() error {
	if strings.TrimSpace(j.Output) == "" {
		return errors.New("output path required")
	}
	if len(j.Inputs) == 0 {
		return errors.New("at least one input required")
	}
	out := filepath.Clean(j.Output)
	for _, in := range j.Inputs {
		if filepath.Clean(in.Path) == out {
			return fmt.Errorf("output %s would overwrite an input", j.Output)
		}
	}
	return nil
}

// Run executes job under the transcode timeout. A nonzero exit or an empty
// output file yields *Error and removes the partial output.
func (g *Gateway) Run(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return &Error{Op: "ffmpeg", Args: job.Args(), ExitCode: -1, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return &Error{Op: "ffmpeg", Args: job.Args(), ExitCode: -1, Err: err}
	}

	args := job.Args()
	runCtx, cancel := context.WithTimeout(ctx, g.opts.TranscodeTimeout)
	defer cancel()

	started := time.Now()
	g.logger.Debug("ffmpeg command",
		logging.String("output", job.Output),
		logging.Strings("args", args),
	)
	output, err := g.run(runCtx, g.opts.FFmpegBinary, args...)
	if err != nil {
		_ = os.Remove(job.Output)
		return g.commandError(ctx, runCtx, "ffmpeg", args, output, err)
	}
	if !fileutil.NonEmpty(job.Output) {
		_ = os.Remove(job.Output)
		return &Error{Op: "ffmpeg", Args: args, ExitCode: 0, Stderr: StderrTail(output), Err: errors.New("empty output file")}
	}
	g.logger.Debug("ffmpeg command complete",
		logging.String("output", job.Output),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Concat joins parts losslessly with the concat demuxer. The list file is
// written next to output and removed afterwards.
func (g *Gateway) Concat(ctx context.Context, parts []string, output string) error {
	if len(parts) == 0 {
		return &Error{Op: "ffmpeg concat", ExitCode: -1, Err: errors.New("no parts to concatenate")}
	}
	listPath := strings.TrimSuffix(output, filepath.Ext(output)) + "_concat.txt"
	if err := WriteConcatList(listPath, parts); err != nil {
		return &Error{Op: "ffmpeg concat", ExitCode: -1, Err: err}
	}
	defer os.Remove(listPath)

	return g.Run(ctx, Job{
		Inputs:        []Input{{Path: listPath, Options: []string{"-f", "concat", "-safe", "0"}}},
		OutputOptions: []string{"-c", "copy"},
		Output:        output,
	})
}

// WriteConcatList writes an ffmpeg concat demuxer list with absolute paths.
func WriteConcatList(path string, parts []string) error {
	var b strings.Builder
	for _, part := range parts {
		abs, err := filepath.Abs(part)
		if err != nil {
			return fmt.Errorf("resolve concat part %s: %w", part, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (g *Gateway) commandError(parent, runCtx context.Context, op string, args []string, output []byte, err error) error {
	result := &Error{Op: op, Args: args, ExitCode: -1, Stderr: StderrTail(output), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		result.Canceled = true
		result.Err = parent.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Timeout = true
	}
	return result
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
