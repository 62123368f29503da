package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"mmoto/internal/captions"
	"mmoto/internal/config"
	"mmoto/internal/footage"
	"mmoto/internal/logging"
	"mmoto/internal/notifications"
	"mmoto/internal/project"
	"mmoto/internal/runstore"
	"mmoto/internal/services"
	"mmoto/internal/stage"
	"mmoto/internal/stageexec"
	"mmoto/internal/timing"
	"mmoto/internal/transcode"
)

// Transcoder is the transcode gateway surface every stage shares.
type Transcoder interface {
	Probe(ctx context.Context, path string) (transcode.MediaInfo, error)
	Run(ctx context.Context, job transcode.Job) error
	RunWithFallback(ctx context.Context, job transcode.Job, capability transcode.Capability, crf int) (string, error)
	DetectHardware(ctx context.Context) transcode.Capability
	Concat(ctx context.Context, parts []string, output string) error
}

// Synthesizer turns one sentence into a narration file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, language, dest string) (string, error)
}

// Transcriber returns the raw speech-recognition payload for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]byte, error)
}

// Recorder persists run history.
type Recorder interface {
	Begin(ctx context.Context, run runstore.Run) error
	AddDegradation(ctx context.Context, id string, d services.Degradation) error
	Finish(ctx context.Context, id string, status runstore.Status, finalVideo, errMsg string) error
}

// Notifier receives the run outcome.
type Notifier interface {
	Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error
}

// Dependencies are the external collaborators of a Runner. Only Transcoder
// is required; a nil Synthesizer makes briefs without narration files fail.
type Dependencies struct {
	Transcoder  Transcoder
	Providers   []footage.Provider
	Synthesizer Synthesizer
	Transcriber Transcriber
	Completer   captions.Completer
	Store       Recorder
	Notifier    Notifier
	// Now and Rand are overridable for tests.
	Now  func() time.Time
	Rand *rand.Rand
}

// Runner executes briefs.
type Runner struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
}

// NewRunner constructs a runner.
func NewRunner(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{cfg: cfg, deps: deps, logger: logging.NewComponentLogger(logger, "pipeline")}
}

// run carries the artifacts passed between stages.
type run struct {
	id           string
	brief        Brief
	proj         *project.Project
	logger       *slog.Logger
	attempts     *transcode.AttemptLog
	started      time.Time
	clips        []footage.Clip
	video        string
	narration    []string
	audio        string
	audioJoined  bool
	audioSeconds float64
	doc          timing.Document
	degradations []services.Degradation
	// stage is the stage currently executing, or the one that failed.
	stage string
}

func (rn *run) degrade(ds ...services.Degradation) {
	for _, d := range ds {
		rn.degradations = append(rn.degradations, d)
		logging.WarnWithContext(rn.logger, "stage degraded", "degradation",
			logging.String("degradation_stage", d.Stage),
			logging.String("degradation_kind", d.Kind),
			logging.String("detail", d.Detail),
		)
	}
}

// Run executes brief end to end. The returned report is populated even when
// an error is returned, as long as the project folder was created.
func (r *Runner) Run(ctx context.Context, brief Brief) (Report, error) {
	if r.deps.Transcoder == nil {
		return Report{Status: runstore.StatusFailed}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "transcoder unavailable", nil)
	}
	brief.Normalize(r.cfg)
	if err := brief.Validate(); err != nil {
		return Report{Status: runstore.StatusFailed}, err
	}

	id := uuid.NewString()
	ctx = services.WithRunID(ctx, id)
	started := r.deps.Now()
	proj, err := project.Create(r.cfg.Paths.OutputDir, started, r.logger)
	if err != nil {
		return Report{RunID: id, Status: runstore.StatusFailed}, services.Wrap(services.ErrConfiguration, "pipeline", "create project", "could not create project folder", err)
	}
	defer func() {
		if err := proj.Close(); err != nil {
			r.logger.Warn("project lock release failed", logging.Error(err))
		}
	}()

	logger := r.logger
	if handler, closer, err := logging.NewRunHandler(proj.RunLog()); err == nil {
		logger = logging.TeeLogger(r.logger, handler)
		defer closer.Close()
	} else {
		logging.WarnWithContext(r.logger, "run log unavailable", "run_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run output is only written to the main log"),
		)
	}

	rn := &run{
		id:       id,
		brief:    brief,
		proj:     proj,
		logger:   logging.WithContext(ctx, logger),
		attempts: transcode.NewAttemptLog(proj.AttemptsLog()),
		started:  started,
	}
	rn.logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("topic", brief.Topic),
		logging.String("project", proj.Dir),
		logging.Strings("keywords", brief.Keywords),
		logging.String("language", brief.Language),
		logging.String("caption_language", brief.CaptionLanguage),
	)
	r.record(ctx, rn, func(ctx context.Context, store Recorder) error {
		return store.Begin(ctx, runstore.Run{
			ID: id, ProjectDir: proj.Dir, Topic: brief.Topic,
			Status: runstore.StatusRunning, StartedAt: started,
		})
	})
	if err := WriteBrief(proj.BriefPath(), brief); err != nil {
		rn.logger.Warn("brief copy not written", logging.Error(err))
	}

	runErr := r.execute(ctx, logger, rn)
	status := Classify(runErr, rn.degradations)
	report := Report{
		RunID:        id,
		ProjectDir:   proj.Dir,
		Status:       status,
		Degradations: rn.degradations,
	}
	if runErr == nil {
		report.FinalVideo = proj.FinalVideo()
	}

	// Metadata is written for stopped and failed runs too.
	finalize := context.WithoutCancel(ctx)
	_ = stageexec.Run(finalize, stageexec.Options{
		Logger: logger,
		Handler: stage.Func{StageName: "metadata", Fn: func(ctx context.Context) error {
			return r.writeMetadata(ctx, rn, &report)
		}},
	})

	r.record(finalize, rn, func(ctx context.Context, store Recorder) error {
		for _, d := range rn.degradations {
			if err := store.AddDegradation(ctx, id, d); err != nil {
				return err
			}
		}
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		return store.Finish(ctx, id, status, report.FinalVideo, errMsg)
	})

	r.notify(finalize, rn, report, runErr)

	if runErr == nil {
		proj.Cleanup(proj.AssembledVideo(), proj.SyncedVideo(), proj.CaptionedVideo(), proj.WorkDir())
	}
	rn.logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", string(status)),
		logging.Int("degradations", len(rn.degradations)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String("final_video", report.FinalVideo),
	)
	return report, runErr
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, rn *run) error {
	stages := []stage.Handler{
		stage.Func{StageName: "footage", Fn: func(ctx context.Context) error { return r.footage(ctx, logger, rn) }},
		stage.Func{StageName: "assembly", Fn: func(ctx context.Context) error { return r.assemble(ctx, logger, rn) }},
		stage.Func{StageName: "narration", Fn: func(ctx context.Context) error { return r.narrate(ctx, rn) }},
		stage.Func{StageName: "reconcile", Fn: func(ctx context.Context) error { return r.reconcile(ctx, logger, rn) }},
		stage.Func{StageName: "timing", Fn: func(ctx context.Context) error { return r.timings(ctx, logger, rn) }},
		stage.Func{StageName: "captions", Fn: func(ctx context.Context) error { return r.caption(ctx, logger, rn) }},
		stage.Func{StageName: "closing", Fn: func(ctx context.Context) error { return r.close(ctx, logger, rn) }},
	}
	for _, handler := range stages {
		rn.stage = handler.Name()
		if err := stageexec.Run(ctx, stageexec.Options{Logger: logger, Handler: handler}); err != nil {
			return err
		}
	}
	return nil
}

// record applies fn to the run store. Store failures never fail the run.
func (r *Runner) record(ctx context.Context, rn *run, fn func(context.Context, Recorder) error) {
	if r.deps.Store == nil {
		return
	}
	if err := fn(ctx, r.deps.Store); err != nil {
		logging.WarnWithContext(rn.logger, "run history not updated", "run_store_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run is missing from `mmoto runs`"),
			logging.String(logging.FieldErrorHint, "check state_db permissions"),
		)
	}
}

// notify publishes the outcome. Delivery failures are logged only.
func (r *Runner) notify(ctx context.Context, rn *run, report Report, runErr error) {
	if r.deps.Notifier == nil {
		return
	}
	payload := notifications.Payload{
		"topic":    rn.brief.Topic,
		"video":    report.FinalVideo,
		"duration": report.DurationSeconds,
	}
	var event notifications.Event
	switch report.Status {
	case runstore.StatusCompleted:
		event = notifications.EventRunCompleted
	case runstore.StatusDegraded:
		event = notifications.EventRunDegraded
		kinds := make([]string, 0, len(rn.degradations))
		for _, d := range rn.degradations {
			kinds = append(kinds, d.Stage+"/"+d.Kind)
		}
		payload["degradations"] = strings.Join(kinds, ", ")
	case runstore.StatusStopped:
		event = notifications.EventRunStopped
	default:
		event = notifications.EventRunFailed
		payload["stage"] = rn.stage
		if runErr != nil {
			payload["error"] = runErr.Error()
		}
	}
	if err := r.deps.Notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(rn.logger, "notification not delivered", "notification_failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldImpact, "run outcome was not pushed to ntfy"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (r *Runner) writeMetadata(ctx context.Context, rn *run, report *Report) error {
	if report.FinalVideo != "" {
		if info, err := r.deps.Transcoder.Probe(ctx, report.FinalVideo); err == nil {
			report.DurationSeconds = info.DurationSeconds
		} else {
			rn.logger.Debug("final video probe failed", logging.Error(err))
		}
	}
	degradations := rn.degradations
	if degradations == nil {
		degradations = []services.Degradation{}
	}
	meta := project.Metadata{
		Topic:           rn.brief.Topic,
		Keywords:        rn.brief.Keywords,
		CreationDate:    rn.started,
		Language:        rn.brief.Language,
		CaptionLanguage: rn.brief.CaptionLanguage,
		Voice:           rn.brief.Voice,
		RunID:           rn.id,
		Status:          string(report.Status),
		FinalVideo:      report.FinalVideo,
		DurationSeconds: report.DurationSeconds,
		Degradations:    degradations,
	}
	var errs []error
	if err := rn.proj.WriteMetadata(meta); err != nil {
		errs = append(errs, err)
	}
	if err := project.AppendStats(project.StatsPath(r.cfg.Paths.OutputDir), project.StatsEntry{
		RunID:           rn.id,
		Topic:           rn.brief.Topic,
		Project:         rn.proj.Name(),
		Status:          string(report.Status),
		CreatedAt:       rn.started,
		DurationSeconds: report.DurationSeconds,
		Degradations:    len(rn.degradations),
	}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func excludedSummary(excluded []string) string {
	if len(excluded) == 0 {
		return "none"
	}
	return strings.Join(excluded, ", ")
}
