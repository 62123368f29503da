package main

import (
	"os"
	"path/filepath"
	"testing"

	"mmoto/internal/timing"
)

func TestTimingsCommandPrintsBranchAndSaves(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	transcript := filepath.Join(dir, "transcript.json")
	raw := `{"words":[{"word":"hello","start":0,"end":0.4},{"word":"world","start":0.5,"end":0.9}]}`
	if err := os.WriteFile(transcript, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "word_timings.json")

	out, _, err := runCLI(t, []string{"timings", "--transcript", transcript, "--out", dest}, env.configPath)
	if err != nil {
		t.Fatalf("timings: %v", err)
	}
	requireContains(t, out, "Branch:   words")
	requireContains(t, out, "Words:    2")

	doc, err := timing.Load(dest)
	if err != nil {
		t.Fatalf("load saved timings: %v", err)
	}
	if len(doc.Words) != 2 || doc.Words[1].Word != "world" {
		t.Fatalf("unexpected words: %+v", doc.Words)
	}
}

func TestTimingsCommandEstimatesFromText(t *testing.T) {
	env := setupCLITestEnv(t)
	transcript := filepath.Join(t.TempDir(), "transcript.json")
	if err := os.WriteFile(transcript, []byte(`{"text":"quick brown fox"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"timings", "--transcript", transcript, "--total-seconds", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("timings: %v", err)
	}
	requireContains(t, out, "Words:    3")
}

func TestTimingsCommandRequiresTranscript(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"timings"}, env.configPath); err == nil {
		t.Fatal("expected error without --transcript")
	}
	if _, _, err := runCLI(t, []string{"timings", "--transcript", filepath.Join(t.TempDir(), "none.json")}, env.configPath); err == nil {
		t.Fatal("expected error for missing transcript")
	}
}
