package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"mmoto/internal/logging"
)

// ErrLocked is returned when another run holds the project folder.
var ErrLocked = errors.New("project folder is in use by another run")

const (
	lockFile   = ".project.lock"
	dirPrefix  = "video_"
	dirLayout  = "20060102_150405"
	footageDir = "footage"
	audioDir   = "audio"
	workDir    = "work"
)

// Project is an exclusively held run folder.
type Project struct {
	Dir    string
	lock   *flock.Flock
	logger *slog.Logger
}

// Create makes a new video_<timestamp> folder under root and locks it. A
// numeric suffix is added when a folder with the same timestamp exists.
func Create(root string, now time.Time, logger *slog.Logger) (*Project, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(root, dirPrefix+now.Format(dirLayout))
	dir := base
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create project dir: %w", err)
		}
		dir = base + "_" + strconv.Itoa(n)
	}
	return open(dir, logger)
}

// Open locks an existing project folder.
func Open(dir string, logger *slog.Logger) (*Project, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open project: %s is not a directory", dir)
	}
	return open(dir, logger)
}

func open(dir string, logger *slog.Logger) (*Project, error) {
	for _, sub := range []string{footageDir, audioDir, workDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}
	return &Project{Dir: dir, lock: lock, logger: logging.NewComponentLogger(logger, "project")}, nil
}

// At names the artifacts of an existing folder without locking it. Use it
// only to read a finished run.
func At(dir string) *Project {
	return &Project{Dir: dir}
}

// Close releases the folder lock.
func (p *Project) Close() error {
	if p == nil || p.lock == nil {
		return nil
	}
	return p.lock.Unlock()
}

// Name returns the folder's base name.
func (p *Project) Name() string { return filepath.Base(p.Dir) }

func (p *Project) path(parts ...string) string {
	return filepath.Join(append([]string{p.Dir}, parts...)...)
}

func (p *Project) FootageDir() string     { return p.path(footageDir) }
func (p *Project) AudioDir() string       { return p.path(audioDir) }
func (p *Project) WorkDir() string        { return p.path(workDir) }
func (p *Project) BriefPath() string      { return p.path("brief.yaml") }
func (p *Project) AssemblyPlan() string   { return p.path("assembly_plan.yaml") }
func (p *Project) AssembledVideo() string { return p.path("assembled_video.mp4") }
func (p *Project) SyncedVideo() string    { return p.path("video_with_audio.mp4") }
func (p *Project) CaptionedVideo() string { return p.path("captioned_video.mp4") }
func (p *Project) FinalVideo() string     { return p.path("final_video.mp4") }
func (p *Project) RawTranscript() string  { return p.path("transcript.json") }
func (p *Project) WordTimings() string    { return p.path("word_timings.json") }
func (p *Project) SubtitlesASS() string   { return p.path("subtitles.ass") }
func (p *Project) SubtitlesSRT() string   { return p.path("subtitles.srt") }
func (p *Project) RunLog() string         { return p.path("run.log") }
func (p *Project) AttemptsLog() string    { return p.path("attempts.log") }
func (p *Project) MetadataPath() string   { return p.path("metadata.json") }

// NarrationPath names the i-th synthesized narration file (zero-based).
func (p *Project) NarrationPath(i int) string {
	return filepath.Join(p.AudioDir(), fmt.Sprintf("narration_%02d.mp3", i+1))
}

// Cleanup removes intermediates. Failures are logged and otherwise ignored.
func (p *Project) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			p.logger.Warn("failed to remove intermediate",
				logging.String(logging.FieldEventType, "cleanup_failed"),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediate file left in project folder"),
			)
		}
	}
}
