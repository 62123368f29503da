package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mmoto/internal/assembly"
	"mmoto/internal/captions"
	"mmoto/internal/closing"
	"mmoto/internal/fileutil"
	"mmoto/internal/footage"
	"mmoto/internal/logging"
	"mmoto/internal/reconcile"
	"mmoto/internal/services"
	"mmoto/internal/timing"
)

func (r *Runner) footage(ctx context.Context, logger *slog.Logger, rn *run) error {
	if dir := rn.brief.ClipsDir; dir != "" {
		clips, err := footage.LocalClips(ctx, dir, r.deps.Transcoder)
		if err != nil {
			return services.Wrap(services.ErrNotFound, "footage", "local clips", "could not read clips_dir", err)
		}
		rn.logger.Info("using local clips",
			logging.Args(append(logging.DecisionAttrs("footage_source", "local", "brief sets clips_dir"),
				logging.String("clips_dir", dir),
				logging.Int("clips", len(clips)),
			)...)...,
		)
		rn.clips = clips
		return nil
	}

	fetcher := footage.NewFetcher(r.deps.Providers, r.deps.Transcoder, footage.OptionsFromConfig(r.cfg, rn.proj.FootageDir()), logger)
	result, err := fetcher.Fetch(ctx, rn.brief.Keywords)
	rn.degrade(result.Degradations...)
	if err != nil {
		return err
	}
	rn.logger.Info("footage ready",
		logging.String(logging.FieldEventType, "footage_summary"),
		logging.Int("clips", len(result.Clips)),
		logging.String("excluded_keywords", excludedSummary(result.Excluded)),
	)
	rn.clips = result.Clips
	return nil
}

func (r *Runner) assemble(ctx context.Context, logger *slog.Logger, rn *run) error {
	assembler := assembly.NewAssembler(r.deps.Transcoder, assembly.OptionsFromConfig(r.cfg), logger)
	result, err := assembler.Assemble(ctx, assembly.Request{
		Clips:          rn.clips,
		PrimaryKeyword: rn.brief.PrimaryKeyword,
		OutputPath:     rn.proj.AssembledVideo(),
		WorkDir:        rn.proj.WorkDir(),
		PlanPath:       rn.proj.AssemblyPlan(),
		Rand:           r.deps.Rand,
	})
	rn.degrade(result.Degradations...)
	if err != nil {
		return err
	}
	rn.video = result.OutputPath
	return nil
}

func (r *Runner) narrate(ctx context.Context, rn *run) error {
	if files := rn.brief.NarrationFiles; len(files) > 0 {
		for _, path := range files {
			if !fileutil.NonEmpty(path) {
				return services.Wrap(services.ErrNotFound, "narration", "verify", fmt.Sprintf("narration file %s missing or empty", path), nil)
			}
		}
		rn.narration = files
		return nil
	}
	if r.deps.Synthesizer == nil {
		return services.Wrap(services.ErrConfiguration, "narration", "synthesize", "no speech client configured", nil)
	}
	paths := make([]string, 0, len(rn.brief.Sentences))
	for i, sentence := range rn.brief.Sentences {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := r.deps.Synthesizer.Synthesize(ctx, sentence, rn.brief.Voice, rn.brief.Language, rn.proj.NarrationPath(i))
		if err != nil {
			return fmt.Errorf("synthesize sentence %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	rn.logger.Info("narration synthesized",
		logging.String(logging.FieldEventType, "narration_ready"),
		logging.Int("files", len(paths)),
		logging.String("voice", rn.brief.Voice),
	)
	rn.narration = paths
	return nil
}

func (r *Runner) reconcile(ctx context.Context, logger *slog.Logger, rn *run) error {
	reconciler := reconcile.NewReconciler(r.deps.Transcoder, reconcile.OptionsFromConfig(r.cfg), logger)
	result, err := reconciler.Reconcile(ctx, reconcile.Request{
		VideoPath:  rn.video,
		AudioPaths: rn.narration,
		OutputPath: rn.proj.SyncedVideo(),
		WorkDir:    rn.proj.WorkDir(),
		Attempts:   rn.attempts,
	})
	rn.degrade(result.Degradations...)
	if err != nil {
		return err
	}
	rn.video = result.OutputPath
	rn.audio = result.AudioPath
	rn.audioJoined = result.Joined
	rn.audioSeconds = result.AudioSeconds
	return nil
}

func (r *Runner) timings(ctx context.Context, logger *slog.Logger, rn *run) error {
	raw, err := r.transcript(ctx, rn)
	if err != nil {
		return err
	}
	result := timing.Extract(ctx, raw, timing.OptionsFromConfig(r.cfg), logger)
	doc := result.Document()

	translated, err := captions.NewTranslator(r.deps.Completer, logger).Translate(ctx, doc.Text, rn.brief.Language, rn.brief.CaptionLanguage)
	switch {
	case err != nil && services.IsCanceled(err):
		return err
	case err != nil:
		rn.degrade(services.Degradation{
			Stage: "timing", Kind: services.DegradationTranslation,
			Detail: fmt.Sprintf("captions kept in %s: %v", rn.brief.Language, err),
		})
	case translated != doc.Text:
		doc.TranslatedText = translated
	}

	if err := doc.Save(rn.proj.WordTimings()); err != nil {
		return err
	}
	rn.doc = doc
	return nil
}

// transcript returns the raw recognition payload. A failed recognition call
// degrades to a text and duration payload built from the brief.
func (r *Runner) transcript(ctx context.Context, rn *run) ([]byte, error) {
	if path := rn.brief.TranscriptFile; path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "timing", "read transcript", "transcript_file unreadable", err)
		}
		return raw, nil
	}
	if r.deps.Transcriber != nil && rn.audio != "" {
		raw, err := r.deps.Transcriber.Transcribe(ctx, rn.audio)
		if err == nil {
			if werr := fileutil.WriteFileAtomic(rn.proj.RawTranscript(), raw, 0o644); werr != nil {
				rn.logger.Warn("raw transcript not saved", logging.Error(werr))
			}
			return raw, nil
		}
		if services.IsCanceled(err) || ctx.Err() != nil {
			return nil, err
		}
		if rn.audioJoined && len(rn.narration) > 1 {
			raw, perr := r.transcribeParts(ctx, rn)
			if perr == nil {
				logging.WarnWithContext(rn.logger, "joined narration not recognized; timed each file separately", "transcript_per_file",
					logging.Int("files", len(rn.narration)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "none if the files were joined without gaps"),
				)
				if werr := fileutil.WriteFileAtomic(rn.proj.RawTranscript(), raw, 0o644); werr != nil {
					rn.logger.Warn("raw transcript not saved", logging.Error(werr))
				}
				return raw, nil
			}
			if services.IsCanceled(perr) || ctx.Err() != nil {
				return nil, perr
			}
			rn.logger.Debug("per-file recognition failed", logging.Error(perr))
		}
		rn.degrade(services.Degradation{
			Stage: "timing", Kind: services.DegradationProvider,
			Detail: fmt.Sprintf("speech recognition failed; using estimated timings: %v", err),
		})
	} else {
		rn.logger.Info("no speech recognition available",
			logging.Args(logging.DecisionAttrs("timing_source", "estimated", "no transcriber or no narration audio")...)...,
		)
	}
	payload := map[string]any{"text": strings.TrimSpace(rn.brief.Script())}
	if rn.audioSeconds > 0 {
		payload["duration"] = rn.audioSeconds
	}
	return json.Marshal(payload)
}

// transcribeParts recognizes each narration file on its own and lays the words
// on one timeline, in the order the joined audio plays them.
func (r *Runner) transcribeParts(ctx context.Context, rn *run) ([]byte, error) {
	opts := timing.OptionsFromConfig(r.cfg)
	segments := make([]timing.Segment, 0, len(rn.narration))
	texts := make([]string, 0, len(rn.narration))
	total := 0.0
	for _, part := range rn.narration {
		raw, err := r.deps.Transcriber.Transcribe(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("transcribe %s: %w", filepath.Base(part), err)
		}
		result := timing.Extract(ctx, raw, opts, rn.logger)
		length := result.Duration
		if info, err := r.deps.Transcoder.Probe(ctx, part); err == nil && info.DurationSeconds > 0 {
			length = info.DurationSeconds
		}
		segments = append(segments, timing.Segment{Words: result.Words, Duration: length})
		if result.Text != "" {
			texts = append(texts, result.Text)
		}
		total += length
	}
	payload := map[string]any{
		"text":  strings.Join(texts, " "),
		"words": timing.Offset(segments, 0),
	}
	if total > 0 {
		payload["duration"] = total
	}
	return json.Marshal(payload)
}

func (r *Runner) caption(ctx context.Context, logger *slog.Logger, rn *run) error {
	if !r.cfg.Captions.Enabled {
		rn.logger.Info("captions skipped",
			logging.Args(logging.DecisionAttrs("captions", "skipped", "captions disabled in config")...)...,
		)
		return nil
	}
	words := rn.doc.Words
	if rn.doc.TranslatedText != "" {
		words = captions.Redistribute(words, rn.doc.TranslatedText)
	}
	renderer := captions.NewRenderer(r.deps.Transcoder, captions.OptionsFromConfig(r.cfg), logger)
	outcome, err := renderer.Render(ctx, captions.Request{
		VideoPath:  rn.video,
		OutputPath: rn.proj.CaptionedVideo(),
		WorkDir:    rn.proj.Dir,
		Words:      words,
		Text:       rn.doc.CaptionText(),
		Duration:   rn.doc.Duration,
		Language:   rn.brief.CaptionLanguage,
		BurnIn:     r.closingPath() != "",
		Attempts:   rn.attempts,
	})
	if err != nil {
		return err
	}
	if outcome.Degraded {
		rn.degrade(services.Degradation{Stage: "captions", Kind: services.DegradationCaptions, Detail: outcome.Reason})
	}
	rn.video = outcome.OutputPath
	return nil
}

func (r *Runner) close(ctx context.Context, logger *slog.Logger, rn *run) error {
	appender := closing.NewAppender(r.deps.Transcoder, closing.OptionsFromConfig(r.cfg), logger)
	outcome, err := appender.Append(ctx, closing.Request{
		VideoPath:   rn.video,
		ClosingPath: r.closingPath(),
		OutputPath:  rn.proj.FinalVideo(),
		WorkDir:     rn.proj.WorkDir(),
		Attempts:    rn.attempts,
	})
	if err != nil {
		return err
	}
	rn.degrade(outcome.Degradations...)
	rn.video = outcome.OutputPath
	return nil
}

// closingPath is the closing clip the closing stage will join, or "" when
// the stage only copies the captioned video through.
func (r *Runner) closingPath() string {
	if !r.cfg.Closing.Enabled || !fileutil.NonEmpty(r.cfg.Closing.VideoPath) {
		return ""
	}
	return r.cfg.Closing.VideoPath
}
