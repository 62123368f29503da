package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mmoto/internal/config"
	"mmoto/internal/logging"
	"mmoto/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName(time.Now())))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "assembly")
	component.Info("clip selected", logging.String("keyword", "ocean wave"), logging.Int("index", 1))
	component.Debug("hidden at info")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO assembly: clip selected") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, `keyword="ocean wave"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if strings.Contains(line, "hidden at info") {
		t.Fatalf("debug record should be filtered, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestRunHandlerCapturesDebugJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project", "run.log")
	handler, closer, err := logging.NewRunHandler(path)
	if err != nil {
		t.Fatalf("NewRunHandler: %v", err)
	}
	logger := logging.TeeLogger(logging.NewNop(), handler)

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "captions")
	logging.WithContext(ctx, logger).Debug("attempt", logging.String(logging.FieldEventType, "caption_attempt"))
	if err := closer.Close(); err != nil {
		t.Fatalf("close run log: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record); err != nil {
		t.Fatalf("decode run log: %v (%s)", err, data)
	}
	if record["run_id"] != "run-1" || record["stage"] != "captions" {
		t.Fatalf("expected context fields, got %v", record)
	}
	if record["level"] != "debug" {
		t.Fatalf("expected debug level, got %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "reconcile degraded", "reconcile_degraded")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{`"event_type":"reconcile_degraded"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in %s", want, data)
		}
	}
}
