package project

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mmoto/internal/services"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestCreateLaysOutFolder(t *testing.T) {
	root := t.TempDir()
	p, err := Create(root, fixedNow, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()

	if p.Name() != "video_20260314_092653" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	for _, dir := range []string{p.FootageDir(), p.AudioDir(), p.WorkDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
	}
	if filepath.Dir(p.NarrationPath(0)) != p.AudioDir() || filepath.Base(p.NarrationPath(0)) != "narration_01.mp3" {
		t.Fatalf("unexpected narration path %s", p.NarrationPath(0))
	}
}

func TestCreateAvoidsCollisions(t *testing.T) {
	root := t.TempDir()
	first, err := Create(root, fixedNow, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer first.Close()
	second, err := Create(root, fixedNow, nil)
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	defer second.Close()
	if second.Name() != "video_20260314_092653_2" {
		t.Fatalf("unexpected second name %q", second.Name())
	}
}

func TestOpenRejectsLockedFolder(t *testing.T) {
	p, err := Create(t.TempDir(), fixedNow, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Open(p.Dir, nil); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := Open(p.Dir, nil)
	if err != nil {
		t.Fatalf("Open after close: %v", err)
	}
	_ = again.Close()
}

func TestWriteMetadata(t *testing.T) {
	p, err := Create(t.TempDir(), fixedNow, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()
	meta := Metadata{
		Topic:        "Deep sea creatures",
		Keywords:     []string{"ocean", "jellyfish"},
		CreationDate: fixedNow,
		Language:     "en",
		RunID:        "run-1",
		Status:       "degraded",
		FinalVideo:   p.FinalVideo(),
		Degradations: []services.Degradation{{Stage: "captions", Kind: services.DegradationCaptions, Detail: "copy"}},
	}
	if err := p.WriteMetadata(meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	got, err := ReadMetadata(p.Dir)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got.Topic != meta.Topic || got.Status != "degraded" || len(got.Degradations) != 1 || !got.CreationDate.Equal(fixedNow) {
		t.Fatalf("unexpected metadata: %+v", got)
	}
}

func TestAppendStatsConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats", "videos.json")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := AppendStats(path, StatsEntry{RunID: "r", Status: "completed"}); err != nil {
				t.Errorf("AppendStats: %v", err)
			}
		}()
	}
	wg.Wait()
	entries, err := ReadStats(path)
	if err != nil {
		t.Fatalf("ReadStats: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(entries))
	}
}

func TestCleanupIgnoresMissing(t *testing.T) {
	p, err := Create(t.TempDir(), fixedNow, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()
	tmp := filepath.Join(p.WorkDir(), "segment_01.mp4")
	if err := os.WriteFile(tmp, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p.Cleanup(tmp, filepath.Join(p.WorkDir(), "missing.mp4"), "")
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("expected intermediate removed")
	}
}
