package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mmoto/internal/config"
	"mmoto/internal/notifications"
	"mmoto/internal/project"
	"mmoto/internal/runstore"
	"mmoto/internal/services"
	"mmoto/internal/testsupport"
	"mmoto/internal/timing"
	"mmoto/internal/transcode"
)

type fakeTranscoder struct {
	mu      sync.Mutex
	jobs    []transcode.Job
	failJob func(job transcode.Job) bool
}

func (f *fakeTranscoder) Probe(_ context.Context, path string) (transcode.MediaInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return transcode.MediaInfo{}, err
	}
	return transcode.MediaInfo{Width: 1080, Height: 1920, DurationSeconds: 10, HasAudio: true, FrameRate: 30}, nil
}

func (f *fakeTranscoder) Run(_ context.Context, job transcode.Job) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.failJob != nil && f.failJob(job) {
		return &transcode.Error{Op: "ffmpeg", ExitCode: 1, Stderr: "boom"}
	}
	return os.WriteFile(job.Output, []byte("video"), 0o644)
}

func (f *fakeTranscoder) RunWithFallback(ctx context.Context, job transcode.Job, _ transcode.Capability, _ int) (string, error) {
	return transcode.SoftwareEncoder, f.Run(ctx, job)
}

func (f *fakeTranscoder) DetectHardware(context.Context) transcode.Capability {
	return transcode.Software()
}

func (f *fakeTranscoder) Concat(_ context.Context, _ []string, output string) error {
	return os.WriteFile(output, []byte("joined"), 0o644)
}

type fakeSynth struct {
	calls  int
	onCall func(n int) error
}

func (f *fakeSynth) Synthesize(_ context.Context, text, _, _, dest string) (string, error) {
	f.calls++
	if f.onCall != nil {
		if err := f.onCall(f.calls); err != nil {
			return "", err
		}
	}
	return dest, os.WriteFile(dest, []byte(text), 0o644)
}

type fakeTranscriber struct {
	raw []byte
	err error
}

func (f fakeTranscriber) Transcribe(context.Context, string) ([]byte, error) {
	return f.raw, f.err
}

// splitTranscriber fails on the joined narration and times each single file.
type splitTranscriber struct {
	mu    sync.Mutex
	calls []string
}

func (f *splitTranscriber) Transcribe(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(path))
	f.mu.Unlock()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.HasPrefix(name, "merged_audio") {
		return nil, errors.New("payload too large")
	}
	return []byte(`{"text":"` + name + `","words":[{"word":"` + name + `","start":0.5,"end":1.5}]}`), nil
}

type fakeCompleter struct{ err error }

func (f fakeCompleter) Complete(context.Context, string, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "hola mundo", nil
}

type fakeStore struct {
	begun        []runstore.Run
	degradations []services.Degradation
	finished     runstore.Status
	errMsg       string
}

func (s *fakeStore) Begin(_ context.Context, run runstore.Run) error {
	s.begun = append(s.begun, run)
	return nil
}

func (s *fakeStore) AddDegradation(_ context.Context, _ string, d services.Degradation) error {
	s.degradations = append(s.degradations, d)
	return nil
}

func (s *fakeStore) Finish(_ context.Context, _ string, status runstore.Status, _, errMsg string) error {
	s.finished = status
	s.errMsg = errMsg
	return nil
}

type fakeNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
	err      error
}

func (n *fakeNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return n.err
}

const wordsTranscript = `{"text":"hello world","duration":10,"words":[{"word":"hello","start":0,"end":4},{"word":"world","start":4.5,"end":9}]}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t)
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func localBrief(t *testing.T) Brief {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteClips(t, filepath.Join(dir, "clips"), "city", "a.mp4", "b.mp4")
	return Brief{
		Topic:          "City nights",
		Keywords:       []string{"city"},
		Sentences:      []string{"hello world"},
		ClipsDir:       filepath.Join(dir, "clips"),
		NarrationFiles: []string{writeFile(t, filepath.Join(dir, "n1.mp3"), "n1"), writeFile(t, filepath.Join(dir, "n2.mp3"), "n2")},
		TranscriptFile: writeFile(t, filepath.Join(dir, "raw.json"), wordsTranscript),
	}
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

func TestRunCompletesWithLocalClips(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{}
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Store: store, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), localBrief(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != runstore.StatusCompleted {
		t.Fatalf("status = %s, degradations %v", report.Status, report.Degradations)
	}
	if filepath.Base(report.ProjectDir) != "video_20260301_123000" {
		t.Fatalf("project dir = %s", report.ProjectDir)
	}
	if _, err := os.Stat(report.FinalVideo); err != nil {
		t.Fatalf("final video missing: %v", err)
	}
	for _, name := range []string{"word_timings.json", "metadata.json", "brief.yaml", "run.log", "assembly_plan.yaml"} {
		if _, err := os.Stat(filepath.Join(report.ProjectDir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(report.ProjectDir, "assembled_video.mp4")); !os.IsNotExist(err) {
		t.Errorf("assembled intermediate should be cleaned up, stat err = %v", err)
	}

	meta, err := project.ReadMetadata(report.ProjectDir)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.Status != "completed" || meta.RunID != report.RunID || meta.DurationSeconds != 10 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	stats, err := project.ReadStats(project.StatsPath(cfg.Paths.OutputDir))
	if err != nil || len(stats) != 1 {
		t.Fatalf("stats = %v, err %v", stats, err)
	}
	if len(store.begun) != 1 || store.finished != runstore.StatusCompleted {
		t.Fatalf("store begun=%d finished=%s", len(store.begun), store.finished)
	}
}

func TestRunSynthesizesNarrationAndDegradesOnRecognitionFailure(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.NarrationFiles = nil
	brief.TranscriptFile = ""
	brief.Sentences = []string{"first line", "second line"}
	synth := &fakeSynth{}
	store := &fakeStore{}
	runner := NewRunner(cfg, Dependencies{
		Transcoder:  &fakeTranscoder{},
		Synthesizer: synth,
		Transcriber: fakeTranscriber{err: errors.New("stt down")},
		Store:       store,
		Now:         fixedNow,
	}, nil)

	report, err := runner.Run(context.Background(), brief)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if synth.calls != 2 {
		t.Fatalf("synth calls = %d", synth.calls)
	}
	if report.Status != runstore.StatusDegraded {
		t.Fatalf("status = %s", report.Status)
	}
	if !hasKind(report.Degradations, services.DegradationProvider) {
		t.Fatalf("missing provider degradation: %v", report.Degradations)
	}
	if len(store.degradations) != len(report.Degradations) {
		t.Fatalf("store got %d degradations, want %d", len(store.degradations), len(report.Degradations))
	}
	if _, err := os.Stat(filepath.Join(report.ProjectDir, "audio", "narration_02.mp3")); err != nil {
		t.Fatalf("narration file missing: %v", err)
	}
}

func TestRunTimesNarrationFilesSeparatelyWhenJoinedRecognitionFails(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.TranscriptFile = ""
	stt := &splitTranscriber{}
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Transcriber: stt, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), brief)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != runstore.StatusCompleted {
		t.Fatalf("status = %s, degradations %v", report.Status, report.Degradations)
	}
	if want := []string{"merged_audio.mp3", "n1.mp3", "n2.mp3"}; strings.Join(stt.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("transcribe calls = %v, want %v", stt.calls, want)
	}

	doc, err := timing.Load(filepath.Join(report.ProjectDir, "word_timings.json"))
	if err != nil {
		t.Fatalf("load timings: %v", err)
	}
	if len(doc.Words) != 2 {
		t.Fatalf("words = %+v", doc.Words)
	}
	// Each narration file is 10s long, so the second file starts at 10s.
	if doc.Words[0].Word != "n1" || doc.Words[0].Start != 0.5 || doc.Words[0].End != 1.5 {
		t.Fatalf("first word = %+v", doc.Words[0])
	}
	if doc.Words[1].Word != "n2" || doc.Words[1].Start != 10.5 || doc.Words[1].End != 11.5 {
		t.Fatalf("second word = %+v", doc.Words[1])
	}
	if doc.Duration != 20 || doc.Text != "n1 n2" {
		t.Fatalf("duration = %v text = %q", doc.Duration, doc.Text)
	}
}

func TestRunSentenceSplitKeepsConfiguredTotal(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.TranscriptFile = ""
	runner := NewRunner(cfg, Dependencies{
		Transcoder:  &fakeTranscoder{},
		Transcriber: fakeTranscriber{raw: []byte(`{"text":"One two. Three."}`)},
		Now:         fixedNow,
	}, nil)

	report, err := runner.Run(context.Background(), brief)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc, err := timing.Load(filepath.Join(report.ProjectDir, "word_timings.json"))
	if err != nil {
		t.Fatalf("load timings: %v", err)
	}
	// The narration is 10s long, but a text-only payload is spread over the
	// configured total.
	if n := len(doc.Words); n != 3 || doc.Words[n-1].End < cfg.Timing.AssumedTotalSeconds-1e-6 {
		t.Fatalf("words = %+v, want last end %.0f", doc.Words, cfg.Timing.AssumedTotalSeconds)
	}
}

func TestRunTranslationFailureKeepsSourceCaptions(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.CaptionLanguage = "es"
	runner := NewRunner(cfg, Dependencies{
		Transcoder: &fakeTranscoder{},
		Completer:  fakeCompleter{err: errors.New("quota")},
		Now:        fixedNow,
	}, nil)

	report, err := runner.Run(context.Background(), brief)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != runstore.StatusDegraded || !hasKind(report.Degradations, services.DegradationTranslation) {
		t.Fatalf("status=%s degradations=%v", report.Status, report.Degradations)
	}
}

func TestRunTranslatesCaptions(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.CaptionLanguage = "es"
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Completer: fakeCompleter{}, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), brief)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(report.ProjectDir, "word_timings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"translatedText": "hola mundo"`) && !strings.Contains(string(data), `"translatedText":"hola mundo"`) {
		t.Fatalf("translation not stored: %s", data)
	}
}

func TestRunMissingNarrationFileFails(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.NarrationFiles = []string{filepath.Join(t.TempDir(), "missing.mp3")}
	store := &fakeStore{}
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Store: store, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), brief)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if report.Status != runstore.StatusFailed || store.finished != runstore.StatusFailed || store.errMsg == "" {
		t.Fatalf("status=%s store=%s msg=%q", report.Status, store.finished, store.errMsg)
	}
	meta, err := project.ReadMetadata(report.ProjectDir)
	if err != nil {
		t.Fatalf("metadata should be written for failed runs: %v", err)
	}
	if meta.Status != "failed" || meta.FinalVideo != "" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if _, err := os.Stat(filepath.Join(report.ProjectDir, "assembled_video.mp4")); err != nil {
		t.Fatalf("partial artifacts should be kept: %v", err)
	}
}

func TestRunWithoutSynthesizerIsConfigurationError(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.NarrationFiles = nil
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Now: fixedNow}, nil)

	_, err := runner.Run(context.Background(), brief)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunCancelledIsStopped(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.NarrationFiles = nil
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	synth := &fakeSynth{onCall: func(int) error {
		cancel()
		return context.Canceled
	}}
	store := &fakeStore{}
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Synthesizer: synth, Store: store, Now: fixedNow}, nil)

	report, err := runner.Run(ctx, brief)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if report.Status != runstore.StatusStopped || store.finished != runstore.StatusStopped {
		t.Fatalf("status=%s store=%s", report.Status, store.finished)
	}
	meta, err := project.ReadMetadata(report.ProjectDir)
	if err != nil || meta.Status != "stopped" {
		t.Fatalf("metadata=%+v err=%v", meta, err)
	}
}

func TestRunCaptionFailureDegrades(t *testing.T) {
	cfg := testConfig(t)
	tc := &fakeTranscoder{failJob: func(job transcode.Job) bool {
		return strings.HasSuffix(job.Output, "captioned_video.mp4")
	}}
	runner := NewRunner(cfg, Dependencies{Transcoder: tc, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), localBrief(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hasKind(report.Degradations, services.DegradationCaptions) {
		t.Fatalf("missing caption degradation: %v", report.Degradations)
	}
	if _, err := os.Stat(report.FinalVideo); err != nil {
		t.Fatalf("final video missing: %v", err)
	}
}

func TestRunWithClosingSceneBurnsCaptionsIn(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithClosingVideo())
	tc := &fakeTranscoder{}
	runner := NewRunner(cfg, Dependencies{Transcoder: tc, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), localBrief(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != runstore.StatusCompleted {
		t.Fatalf("status = %s, degradations %v", report.Status, report.Degradations)
	}
	burned, joined := false, false
	for _, job := range tc.jobs {
		if strings.Contains(strings.Join(job.OutputOptions, " "), "mov_text") {
			t.Fatalf("soft subtitle track would be dropped by the closing join: %+v", job)
		}
		if strings.HasSuffix(job.Output, "captioned_video.mp4") && strings.Contains(job.FilterGraph, "ass=filename=") {
			burned = true
		}
		if strings.HasSuffix(job.Output, "final_video.mp4") && strings.Contains(job.FilterComplex, "concat=n=2") {
			joined = true
		}
	}
	if !burned || !joined {
		t.Fatalf("burned=%v joined=%v, jobs %d", burned, joined, len(tc.jobs))
	}
}

func TestRunRecordsHistoryInRunStore(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	brief := localBrief(t)
	brief.CaptionLanguage = "es"
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Store: store, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), brief)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := store.Get(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != runstore.StatusDegraded || got.FinalVideo != report.FinalVideo || got.Topic != brief.Topic {
		t.Fatalf("unexpected run row %+v", got)
	}
	ds, err := store.Degradations(context.Background(), report.RunID)
	if err != nil || len(ds) != len(report.Degradations) || ds[0].Kind != services.DegradationTranslation {
		t.Fatalf("degradations = %+v, err %v", ds, err)
	}
}

func TestRunRejectsInvalidBrief(t *testing.T) {
	runner := NewRunner(testConfig(t), Dependencies{Transcoder: &fakeTranscoder{}}, nil)
	report, err := runner.Run(context.Background(), Brief{Keywords: []string{"x"}, Sentences: []string{"y"}})
	if !errors.Is(err, services.ErrValidation) || report.Status != runstore.StatusFailed {
		t.Fatalf("err=%v status=%s", err, report.Status)
	}
}

func hasKind(ds []services.Degradation, kind string) bool {
	for _, d := range ds {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestRunNotifiesOutcome(t *testing.T) {
	cfg := testConfig(t)
	notifier := &fakeNotifier{}
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Notifier: notifier, Now: fixedNow}, nil)

	report, err := runner.Run(context.Background(), localBrief(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRunCompleted {
		t.Fatalf("events = %v", notifier.events)
	}
	if notifier.payloads[0]["video"] != report.FinalVideo {
		t.Fatalf("payload = %v", notifier.payloads[0])
	}
}

func TestRunNotifiesFailedStage(t *testing.T) {
	cfg := testConfig(t)
	brief := localBrief(t)
	brief.NarrationFiles = []string{filepath.Join(t.TempDir(), "missing.mp3")}
	notifier := &fakeNotifier{err: errors.New("ntfy down")}
	runner := NewRunner(cfg, Dependencies{Transcoder: &fakeTranscoder{}, Notifier: notifier, Now: fixedNow}, nil)

	if _, err := runner.Run(context.Background(), brief); err == nil {
		t.Fatal("expected run failure")
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRunFailed {
		t.Fatalf("events = %v", notifier.events)
	}
	payload := notifier.payloads[0]
	if payload["stage"] != "narration" || !strings.Contains(payload["error"].(string), "missing.mp3") {
		t.Fatalf("payload = %v", payload)
	}
}
