package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsCommandFiltersAndFormats(t *testing.T) {
	env := setupCLITestEnv(t)
	projectDir := seedRun(t, env, "run-logs")

	lines := []string{
		`{"ts":"2026-03-01T12:30:00Z","level":"info","msg":"stage started","component":"stageexec","stage":"footage","event_type":"stage_start"}`,
		`{"ts":"2026-03-01T12:30:05Z","level":"warn","msg":"stage degraded","component":"pipeline","stage":"captions","event_type":"degradation","detail":"burn-in failed"}`,
		`{"ts":"2026-03-01T12:30:09Z","level":"info","msg":"run finished","component":"pipeline","event_type":"run_complete"}`,
	}
	if err := os.WriteFile(filepath.Join(projectDir, "run.log"), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "run-logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "stage started")
	requireContains(t, out, "run finished")

	out, _, err = runCLI(t, []string{"logs", "run-logs", "--level", "warn"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	requireContains(t, out, "[captions] pipeline: stage degraded")
	if strings.Contains(out, "stage started") {
		t.Fatalf("info line should be filtered: %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "run-logs", "-n", "1", "--raw"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --raw: %v", err)
	}
	if strings.TrimSpace(out) != lines[2] {
		t.Fatalf("expected last raw line, got %q", out)
	}
}

func TestLogsCommandUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"logs", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
