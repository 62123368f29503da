package transcode

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAttemptLogRecordsExitAndStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attempts.log")
	log := NewAttemptLog(path)
	log.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	failure := &Error{Op: "ffmpeg", ExitCode: 1, Stderr: "line one\nNo such filter: 'ass'"}
	if err := log.Record(AttemptRecord{Stage: "captions", Strategy: "styled_burn", Err: failure, Elapsed: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(AttemptRecord{Stage: "captions", Strategy: "simple_burn"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"2026-01-02T03:04:05Z stage=captions strategy=styled_burn status=failed exit=1 elapsed=1.5s",
		"  stderr: No such filter: 'ass'",
		"strategy=simple_burn status=ok exit=0",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("attempt log missing %q:\n%s", want, content)
		}
	}
}

func TestAttemptLogNilAndPlainErrors(t *testing.T) {
	var nilLog *AttemptLog
	if err := nilLog.Record(AttemptRecord{Strategy: "x"}); err != nil {
		t.Fatalf("nil log should discard, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "attempts.log")
	if err := NewAttemptLog(path).Record(AttemptRecord{Stage: "closing", Strategy: "concat_filter", Err: errors.New("boom")}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "status=failed exit=-1") || !strings.Contains(string(data), "error: boom") {
		t.Fatalf("unexpected record %s", data)
	}
}
