package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present, 0o755)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestResolveSearchesPath(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	writeStub(t, ffmpeg, 0o755)
	t.Setenv("PATH", binDir)

	statuses := CheckBinaries(MediaRequirements("ffmpeg", "ffprobe"))
	if !statuses[0].Available || statuses[0].Command != ffmpeg {
		t.Fatalf("expected ffmpeg resolved to %s, got %#v", ffmpeg, statuses[0])
	}
	if statuses[1].Available {
		t.Fatalf("expected ffprobe to be missing, got %#v", statuses[1])
	}
}

func TestResolveRejectsNonExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffprobe")
	writeStub(t, path, 0o644)
	if _, err := Resolve(path); err == nil {
		t.Fatal("expected error for non-executable file")
	}
}
