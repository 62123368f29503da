package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AttemptRecord is one entry of a fallback chain.
type AttemptRecord struct {
	Stage    string
	Strategy string
	Err      error
	Elapsed  time.Duration
}

// AttemptLog appends plain-text fallback records to a per-run file. A nil
// *AttemptLog discards records.
type AttemptLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewAttemptLog returns a log appending to path.
func NewAttemptLog(path string) *AttemptLog {
	return &AttemptLog{path: path, now: time.Now}
}

// Path returns the backing file.
func (l *AttemptLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Record appends rec. Exit status and stderr tail are taken from a wrapped
// *Error when present.
func (l *AttemptLog) Record(rec AttemptRecord) error {
	if l == nil || strings.TrimSpace(l.path) == "" {
		return nil
	}
	var b strings.Builder
	status := "ok"
	exitCode := 0
	stderr := ""
	if rec.Err != nil {
		status = "failed"
		exitCode = -1
		var tErr *Error
		if errors.As(rec.Err, &tErr) {
			exitCode = tErr.ExitCode
			stderr = tErr.Stderr
			switch {
			case tErr.Timeout:
				status = "timeout"
			case tErr.Canceled:
				status = "canceled"
			}
		}
	}
	fmt.Fprintf(&b, "%s stage=%s strategy=%s status=%s exit=%d elapsed=%s\n",
		l.now().UTC().Format(time.RFC3339), rec.Stage, rec.Strategy, status, exitCode, rec.Elapsed.Round(time.Millisecond))
	if rec.Err != nil {
		fmt.Fprintf(&b, "  error: %v\n", rec.Err)
	}
	if stderr != "" {
		for _, line := range strings.Split(stderr, "\n") {
			b.WriteString("  stderr: ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create attempt log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open attempt log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write attempt log: %w", err)
	}
	return nil
}
