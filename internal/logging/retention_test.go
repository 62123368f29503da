package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mmoto/internal/logging"
)

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -10)
	files := map[string]time.Time{
		"mmoto-20260510.log":      old,
		"mmoto-20260519.log":      now.AddDate(0, 0, -1),
		"notes.txt":               old,
		logging.LogFileName(now): old,
	}
	for name, mtime := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	removed := logging.CleanupOldLogs(nil, 7, now, logging.RetentionTarget{
		Dir:     dir,
		Pattern: logging.LogFilePattern,
		Exclude: []string{filepath.Join(dir, logging.LogFileName(now))},
	})
	if removed != 1 {
		t.Fatalf("removed %d files, want 1", removed)
	}
	for name := range files {
		_, err := os.Stat(filepath.Join(dir, name))
		if name == "mmoto-20260510.log" {
			if !os.IsNotExist(err) {
				t.Fatalf("%s should be pruned", name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s should remain: %v", name, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	if removed := logging.CleanupOldLogs(nil, 0, time.Now(), logging.RetentionTarget{Dir: t.TempDir()}); removed != 0 {
		t.Fatalf("removed = %d", removed)
	}
}
