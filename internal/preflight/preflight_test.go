package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mmoto/internal/config"
	"mmoto/internal/transcode"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte minimum, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<62)
	if result.Passed || !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected failure for impossible minimum, got %+v", result)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "nope"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	full := filepath.Join(dir, "closing.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !CheckFile("f", full).Passed {
		t.Fatal("expected non-empty file to pass")
	}
	for _, path := range []string{empty, dir, filepath.Join(dir, "missing.mp4")} {
		if CheckFile("f", path).Passed {
			t.Fatalf("expected %s to fail", path)
		}
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	ok := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "good-key", BaseURL: srv.URL, Model: "m"})
	if !ok.Passed {
		t.Fatalf("expected pass, got: %s", ok.Detail)
	}
	bad := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "bad-key", BaseURL: srv.URL, Model: "m"})
	if bad.Passed {
		t.Fatal("expected failure for bad key")
	}
	if missing := CheckLLM(context.Background(), "LLM", config.LLMConfig{}); missing.Passed || missing.Detail != "API key missing" {
		t.Fatalf("unexpected result for missing key: %+v", missing)
	}
}

type fixedDetector transcode.Capability

func (d fixedDetector) DetectHardware(context.Context) transcode.Capability {
	return transcode.Capability(d)
}

func TestCheckEncoder(t *testing.T) {
	hw := CheckEncoder(context.Background(), fixedDetector{Available: true, Encoder: "h264_nvenc"})
	if !hw.Passed || hw.Detail != "h264_nvenc (hardware)" {
		t.Fatalf("unexpected hardware result %+v", hw)
	}
	sw := CheckEncoder(context.Background(), fixedDetector(transcode.Software()))
	if !sw.Passed || !strings.Contains(sw.Detail, "software") {
		t.Fatalf("unexpected software result %+v", sw)
	}
}

func TestCheckFootageProviders(t *testing.T) {
	cfg := config.Default()
	if CheckFootageProviders(&cfg).Passed {
		t.Fatal("expected failure with no keys")
	}
	cfg.Footage.PexelsAPIKey = "pexels-key"
	result := CheckFootageProviders(&cfg)
	if !result.Passed || !strings.Contains(result.Detail, "pexels") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.FFmpeg.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.FFmpeg.FFprobeBinary = filepath.Join(binDir, "ffprobe")
	cfg.Closing.Enabled = false
	cfg.Captions.CaptionLanguage = ""

	results := RunAll(context.Background(), &cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := "FFmpeg,FFprobe,Output directory,Output free space"
	if strings.Join(names, ",") != want {
		t.Fatalf("checks = %v, want %s", names, want)
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesTranslationLLMWhenLanguagesDiffer(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Closing.Enabled = true
	cfg.Closing.VideoPath = filepath.Join(t.TempDir(), "missing.mp4")
	cfg.Captions.SourceLanguage = "en"
	cfg.Captions.CaptionLanguage = "es"
	cfg.LLM.APIKey = ""

	failed := Failed(RunAll(context.Background(), &cfg))
	found := map[string]bool{}
	for _, r := range failed {
		found[r.Name] = true
	}
	if !found["Translation LLM"] || !found["Closing video"] {
		t.Fatalf("expected translation and closing failures, got %+v", failed)
	}
}
