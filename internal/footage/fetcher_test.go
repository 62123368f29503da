package footage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mmoto/internal/services"
	"mmoto/internal/services/llm"
	"mmoto/internal/transcode"
)

type fakeProvider struct {
	name    string
	results map[string][]Candidate
	failN   map[string]int
	mu      sync.Mutex
	calls   map[string]int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(_ context.Context, keyword string) ([]Candidate, error) {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[keyword]++
	n := p.calls[keyword]
	p.mu.Unlock()
	if n <= p.failN[keyword] {
		return nil, &ProviderError{Provider: p.name, Op: "search", StatusCode: 503}
	}
	out := make([]Candidate, 0, len(p.results[keyword]))
	for _, c := range p.results[keyword] {
		c.Provider = p.name
		c.Keyword = keyword
		out = append(out, c)
	}
	return out, nil
}

func (p *fakeProvider) Download(_ context.Context, videoURL, dest string) (string, error) {
	if strings.Contains(videoURL, "broken") {
		return "", &ProviderError{Provider: p.name, Op: "download", StatusCode: 404}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	return dest, os.WriteFile(dest, []byte(videoURL), 0o644)
}

func (p *fakeProvider) searchCalls(keyword string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[keyword]
}

type fakeProber struct {
	bad map[string]bool
}

func (f fakeProber) Probe(_ context.Context, path string) (transcode.MediaInfo, error) {
	if f.bad[filepath.Base(path)] {
		return transcode.MediaInfo{}, errors.New("invalid data")
	}
	return transcode.MediaInfo{Width: 1080, Height: 1920, DurationSeconds: 6}, nil
}

func newTestFetcher(t *testing.T, providers []Provider, prober Prober, perKeyword int) *Fetcher {
	t.Helper()
	f := NewFetcher(providers, prober, Options{
		Dir:             t.TempDir(),
		SearchTimeout:   time.Second,
		DownloadTimeout: time.Second,
		RetryAttempts:   3,
		ClipsPerKeyword: perKeyword,
	}, nil)
	f.WithRetryPolicy(llm.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}})
	return f
}

func TestFetchPreservesKeywordOrderAndPrefersPortrait(t *testing.T) {
	pexels := &fakeProvider{name: "pexels", results: map[string][]Candidate{
		"sunset": {
			{ID: "1", VideoURL: "u/1", Width: 1920, Height: 1080},
			{ID: "2", VideoURL: "u/2", Width: 1080, Height: 1920},
		},
		"forest": {{ID: "3", VideoURL: "u/3", Width: 1080, Height: 1920}},
	}}
	pixabay := &fakeProvider{name: "pixabay", results: map[string][]Candidate{
		"sunset": {{ID: "9", VideoURL: "u/9", Width: 720, Height: 1280}},
	}}
	f := newTestFetcher(t, []Provider{pexels, pixabay}, fakeProber{}, 2)

	res, err := f.Fetch(context.Background(), []string{"sunset", "forest", "Sunset"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var ids []string
	for _, c := range res.Clips {
		ids = append(ids, c.ID+"@"+c.Keyword)
	}
	want := "pexels_2@sunset,pixabay_9@sunset,pexels_3@forest"
	if strings.Join(ids, ",") != want {
		t.Fatalf("clips = %v, want %s", ids, want)
	}
	if len(res.Excluded) != 0 || len(res.Degradations) != 0 {
		t.Fatalf("unexpected exclusions: %+v", res)
	}
	for _, c := range res.Clips {
		if _, err := os.Stat(c.Path); err != nil {
			t.Fatalf("clip %s not on disk: %v", c.ID, err)
		}
		if c.DurationSeconds != 6 || c.Height != 1920 {
			t.Fatalf("probe data not applied: %+v", c)
		}
	}
}

func TestFetchRetriesTransientSearchFailures(t *testing.T) {
	p := &fakeProvider{
		name:    "pexels",
		results: map[string][]Candidate{"rain": {{ID: "1", VideoURL: "u/1"}}},
		failN:   map[string]int{"rain": 2},
	}
	f := newTestFetcher(t, []Provider{p}, fakeProber{}, 3)
	res, err := f.Fetch(context.Background(), []string{"rain"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Clips) != 1 {
		t.Fatalf("expected a clip after retry, got %+v", res)
	}
	if got := p.searchCalls("rain"); got != 3 {
		t.Fatalf("expected 3 search calls, got %d", got)
	}
}

func TestFetchExcludesKeywordsWithoutClips(t *testing.T) {
	p := &fakeProvider{
		name: "pexels",
		results: map[string][]Candidate{
			"good":   {{ID: "1", VideoURL: "u/1"}},
			"broken": {{ID: "2", VideoURL: "u/broken"}},
			"bad":    {{ID: "3", VideoURL: "u/3"}},
		},
		failN: map[string]int{"down": 10},
	}
	prober := fakeProber{bad: map[string]bool{"pexels_3.mp4": true}}
	f := newTestFetcher(t, []Provider{p}, prober, 3)

	res, err := f.Fetch(context.Background(), []string{"good", "broken", "bad", "down"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Clips) != 1 || res.Clips[0].Keyword != "good" {
		t.Fatalf("unexpected clips: %+v", res.Clips)
	}
	if strings.Join(res.Excluded, ",") != "broken,bad,down" {
		t.Fatalf("excluded = %v", res.Excluded)
	}
	if len(res.Degradations) != 3 || res.Degradations[0].Kind != services.DegradationProvider {
		t.Fatalf("unexpected degradations: %+v", res.Degradations)
	}
	if !strings.Contains(res.Degradations[2].Detail, "http 503") {
		t.Fatalf("search error not reported: %s", res.Degradations[2].Detail)
	}
	if _, err := os.Stat(filepath.Join(f.opts.Dir, "pexels_3.mp4")); !os.IsNotExist(err) {
		t.Fatal("unprobeable clip should be removed")
	}
}

func TestFetchWithoutProviders(t *testing.T) {
	f := newTestFetcher(t, nil, fakeProber{}, 3)
	res, err := f.Fetch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Clips) != 0 || len(res.Excluded) != 2 || len(res.Degradations) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFetchCanceled(t *testing.T) {
	p := &fakeProvider{name: "pexels", results: map[string][]Candidate{"a": {{ID: "1", VideoURL: "u/1"}}}}
	f := newTestFetcher(t, []Provider{p}, fakeProber{}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLocalClipsUsesDirectoryAsKeyword(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"beach/one.mp4", "beach/two.MOV", "city.mp4", "notes.txt", "broken.mp4"} {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	clips, err := LocalClips(context.Background(), dir, fakeProber{bad: map[string]bool{"broken.mp4": true}})
	if err != nil {
		t.Fatalf("LocalClips: %v", err)
	}
	var got []string
	for _, c := range clips {
		got = append(got, c.ID+"@"+c.Keyword)
	}
	want := "local_beach_one@beach,local_beach_two@beach,local_city@city"
	if strings.Join(got, ",") != want {
		t.Fatalf("clips = %v, want %s", got, want)
	}
}
