package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mmoto/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Closing scenes are disabled and captions stay in the narration language.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FontDir = filepath.Join(base, "fonts")
	cfgVal.Paths.StateDB = filepath.Join(base, "state", "mmoto.db")
	cfgVal.Closing.Enabled = false
	cfgVal.Captions.CaptionLanguage = ""
	cfgVal.FFmpeg.HardwareAccel = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCaptionLanguage makes captions render in lang.
func WithCaptionLanguage(lang string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Captions.CaptionLanguage = lang
	}
}

// WithClosingVideo enables the closing scene using a stub file under the
// config's base directory.
func WithClosingVideo() ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "assets", "closing.mp4")
		WriteFile(b.t, path, 64)
		b.cfg.Closing.Enabled = true
		b.cfg.Closing.VideoPath = path
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
