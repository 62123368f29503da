package captions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mmoto/internal/config"
	"mmoto/internal/logging"
	"mmoto/internal/services"
	"mmoto/internal/timing"
	"mmoto/internal/transcode"
)

// Options configures caption styling.
type Options struct {
	Width          int
	Height         int
	Font           string
	FontDir        string
	FontSize       int
	SimpleFontSize int
	MarginV        int
	CRF            int
	Cue            CueOptions
}

// OptionsFromConfig maps [output], [captions], [assembly] and [paths] onto
// renderer options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Width:          cfg.Output.Width,
		Height:         cfg.Output.Height,
		Font:           cfg.Captions.Font,
		FontDir:        cfg.Paths.FontDir,
		FontSize:       cfg.Captions.FontSize,
		SimpleFontSize: cfg.Captions.SimpleFontSize,
		MarginV:        cfg.Captions.MarginV,
		CRF:            cfg.Assembly.CRF,
		Cue:            CueOptionsFromConfig(cfg),
	}
}

// Request is one caption render.
type Request struct {
	VideoPath  string
	OutputPath string
	// WorkDir receives the generated subtitle files; defaults to the output dir.
	WorkDir string
	Words   []timing.WordTiming
	// Text is the full caption text used by the single-caption fallback.
	Text     string
	Duration float64
	Language string
	// BurnIn skips the soft subtitle track. Set it when a later step
	// re-encodes or joins the video, since those drop subtitle streams.
	BurnIn   bool
	Attempts *transcode.AttemptLog
}

// Outcome reports which strategy produced the output.
type Outcome struct {
	OutputPath string
	Strategy   string
	Degraded   bool
	Reason     string
	Attempts   []string
}

// Renderer runs the caption fallback chain.
type Renderer struct {
	opts       Options
	logger     *slog.Logger
	strategies []Strategy
}

// NewRenderer builds a renderer using the default strategy chain over tc.
func NewRenderer(tc Transcoder, opts Options, logger *slog.Logger) *Renderer {
	if opts.Cue == (CueOptions{}) {
		opts.Cue = DefaultCueOptions()
	}
	return &Renderer{
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "captions"),
		strategies: DefaultChain(tc),
	}
}

// WithStrategies replaces the chain. The caller is responsible for ending it
// with a strategy that cannot fail.
func (r *Renderer) WithStrategies(strategies ...Strategy) {
	if r != nil && len(strategies) > 0 {
		r.strategies = strategies
	}
}

// Render captions req.VideoPath into req.OutputPath. It returns an error only
// when the input video is missing or no strategy, including the plain copy,
// produced an output.
func (r *Renderer) Render(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)
	if _, err := os.Stat(req.VideoPath); err != nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, "captions", "render", "input video missing", err)
	}
	workDir := req.WorkDir
	if strings.TrimSpace(workDir) == "" {
		workDir = filepath.Dir(req.OutputPath)
	}

	cues := BuildCues(req.Words, r.opts.Cue)
	font, found := ResolveFont(r.opts.FontDir, r.opts.Font)
	if !found && len(cues) > 0 {
		logging.WarnWithContext(logger, "caption font not installed; using fallback", "caption_font_fallback",
			logging.String("font", r.opts.Font),
			logging.String("font_dir", r.opts.FontDir),
			logging.String("fallback", font),
			logging.String(logging.FieldImpact, "captions use a generic font"),
			logging.String(logging.FieldErrorHint, "place "+r.opts.Font+".ttf in [paths] font_dir"),
		)
	}
	in := Input{
		VideoPath:  req.VideoPath,
		OutputPath: req.OutputPath,
		WorkDir:    workDir,
		Cues:       cues,
		Text:       req.Text,
		Duration:   req.Duration,
		Language:   req.Language,
		Style: Style{
			PlayResX: r.opts.Width, PlayResY: r.opts.Height,
			Font: font, FontSize: r.opts.FontSize, MarginV: r.opts.MarginV,
			Box: true, Uppercase: true, Language: req.Language,
		},
		SimpleStyle: Style{
			PlayResX: r.opts.Width, PlayResY: r.opts.Height,
			Font: font, FontSize: r.opts.SimpleFontSize, MarginV: r.opts.MarginV,
			Uppercase: true, Language: req.Language,
		},
		FontDir: r.opts.FontDir,
		CRF:     r.opts.CRF,
	}

	chain := r.strategies
	if req.BurnIn {
		chain = withoutStrategy(chain, StrategySoftMux)
	}
	if len(cues) == 0 {
		chain = []Strategy{copyInput{}}
	}

	outcome := Outcome{}
	var lastErr error
	for _, strategy := range chain {
		name := strategy.Name()
		if ctx.Err() != nil && name != StrategyCopyInput {
			continue
		}
		started := time.Now()
		attempt, err := strategy.Attempt(ctx, in)
		elapsed := time.Since(started)
		outcome.Attempts = append(outcome.Attempts, name)
		if logErr := req.Attempts.Record(transcode.AttemptRecord{Stage: "captions", Strategy: name, Err: err, Elapsed: elapsed}); logErr != nil {
			logger.Debug("attempt log write failed", logging.Error(logErr))
		}
		if err != nil {
			lastErr = err
			logger.Info("caption strategy failed",
				logging.String(logging.FieldEventType, "caption_attempt"),
				logging.String("strategy", name),
				logging.Duration("elapsed", elapsed),
				logging.Error(err),
			)
			continue
		}
		outcome.OutputPath = attempt.OutputPath
		outcome.Strategy = name
		break
	}
	if outcome.Strategy == "" {
		return outcome, fmt.Errorf("captions: every strategy failed: %w", lastErr)
	}

	switch {
	case len(cues) == 0:
		outcome.Degraded = true
		outcome.Reason = "no word timings; video left uncaptioned"
	case outcome.Strategy == StrategySingleCaption:
		outcome.Degraded = true
		outcome.Reason = "word captions failed; showing full transcript as one caption"
	case outcome.Strategy == StrategyCopyInput:
		outcome.Degraded = true
		outcome.Reason = "every caption strategy failed; video left uncaptioned"
		if lastErr != nil {
			outcome.Reason += ": " + lastErr.Error()
		}
	case outcome.Strategy != chain[0].Name():
		outcome.Degraded = true
		failed := outcome.Attempts[:len(outcome.Attempts)-1]
		outcome.Reason = fmt.Sprintf("%s failed; captions rendered with %s", strings.Join(failed, ", "), outcome.Strategy)
		if lastErr != nil {
			outcome.Reason += ": " + lastErr.Error()
		}
	}

	attrs := []logging.Attr{
		logging.String("strategy", outcome.Strategy),
		logging.Int("cues", len(cues)),
		logging.Strings("attempts", outcome.Attempts),
		logging.String("output", outcome.OutputPath),
	}
	if outcome.Degraded {
		logging.WarnWithContext(logger, "captions degraded", "caption_degraded",
			append(attrs,
				logging.String("reason", outcome.Reason),
				logging.Alert("caption_fallback"),
				logging.String(logging.FieldImpact, "final video has reduced or no captions"),
				logging.String(logging.FieldErrorHint, "inspect attempts.log for ffmpeg stderr"),
			)...,
		)
	} else {
		attrs = append(attrs, logging.String(logging.FieldEventType, "caption_result"))
		logger.Info("captions rendered", logging.Args(attrs...)...)
	}
	return outcome, nil
}

func withoutStrategy(chain []Strategy, name string) []Strategy {
	out := make([]Strategy, 0, len(chain))
	for _, s := range chain {
		if s.Name() != name {
			out = append(out, s)
		}
	}
	return out
}
