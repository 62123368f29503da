package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mmoto/internal/fileutil"
	"mmoto/internal/services"
)

// Metadata is written to metadata.json at the end of a run.
type Metadata struct {
	Topic           string                 `json:"topic"`
	Keywords        []string               `json:"keywords"`
	CreationDate    time.Time              `json:"creation_date"`
	Language        string                 `json:"language"`
	CaptionLanguage string                 `json:"caption_language"`
	Voice           string                 `json:"voice,omitempty"`
	RunID           string                 `json:"run_id"`
	Status          string                 `json:"status"`
	FinalVideo      string                 `json:"final_video"`
	DurationSeconds float64                `json:"duration"`
	Degradations    []services.Degradation `json:"degradations"`
}

// WriteMetadata writes metadata.json.
func (p *Project) WriteMetadata(m Metadata) error {
	if m.Degradations == nil {
		m.Degradations = []services.Degradation{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return fileutil.WriteFileAtomic(p.MetadataPath(), append(data, '\n'), 0o644)
}

// ReadMetadata loads metadata.json from dir.
func ReadMetadata(dir string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// StatsEntry is one line of the cumulative stats file.
type StatsEntry struct {
	RunID           string    `json:"run_id"`
	Topic           string    `json:"topic"`
	Project         string    `json:"project"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds float64   `json:"duration"`
	Degradations    int       `json:"degradations"`
}

// StatsPath is the cumulative stats file under the output directory.
func StatsPath(outputDir string) string {
	return filepath.Join(outputDir, "stats", "videos.json")
}

// AppendStats appends entry to the JSON array at path. Concurrent runs are
// serialized with a lock file next to path.
func AppendStats(path string, entry StatsEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock stats: %w", err)
	}
	defer lock.Unlock()

	var entries []StatsEntry
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read stats: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decode stats %s: %w", path, err)
		}
	}
	entries = append(entries, entry)
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(out, '\n'), 0o644)
}

// ReadStats returns every recorded entry.
func ReadStats(path string) ([]StatsEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []StatsEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode stats %s: %w", path, err)
	}
	return entries, nil
}
