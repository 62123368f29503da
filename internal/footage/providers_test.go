package footage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mmoto/internal/services"
)

func TestPexelsSearchPrefersPortraitRendition(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"videos":[
			{"id":7,"duration":12,"image":"thumb.jpg","video_files":[
				{"link":"http://x/land.mp4","width":1920,"height":1080},
				{"link":"http://x/small.mp4","width":540,"height":960},
				{"link":"http://x/big.mp4","width":1080,"height":1920}
			]},
			{"id":8,"duration":5,"video_files":[
				{"link":"http://x/only.mp4","width":1280,"height":720}
			]},
			{"id":9,"duration":5,"video_files":[]}
		]}`))
	}))
	defer srv.Close()

	client := NewPexelsClient("secret", 5, WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "ocean waves")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotAuth != "secret" || gotQuery != "ocean waves" {
		t.Fatalf("request auth=%q query=%q", gotAuth, gotQuery)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].VideoURL != "http://x/big.mp4" || got[0].ID != "7" || !got[0].Portrait() {
		t.Fatalf("unexpected first candidate: %+v", got[0])
	}
	if got[1].VideoURL != "http://x/only.mp4" || got[1].Portrait() {
		t.Fatalf("unexpected fallback candidate: %+v", got[1])
	}
	if got[0].Provider != "pexels" || got[0].Keyword != "ocean waves" {
		t.Fatalf("candidate not tagged: %+v", got[0])
	}
}

func TestPixabaySearchPicksLargestRendition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" || r.URL.Query().Get("q") != "city" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"hits":[{"id":3,"duration":9,"videos":{
			"large":{"url":"","width":0,"height":0},
			"medium":{"url":"http://x/m.mp4","width":1280,"height":720,"thumbnail":"t.jpg"},
			"small":{"url":"http://x/s.mp4","width":960,"height":540}
		}}]}`))
	}))
	defer srv.Close()

	client := NewPixabayClient("k", 1, WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "city")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].VideoURL != "http://x/m.mp4" || got[0].ThumbnailURL != "t.jpg" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestSearchStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		retryable  bool
		marker     error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "2", retryable: true, marker: services.ErrTransient},
		{name: "server error", status: http.StatusBadGateway, retryable: true, marker: services.ErrTransient},
		{name: "unauthorized", status: http.StatusUnauthorized, marker: services.ErrConfiguration},
		{name: "bad request", status: http.StatusBadRequest, marker: services.ErrExternalTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := NewPexelsClient("key", 5, WithBaseURL(srv.URL)).Search(context.Background(), "x")
			var perr *ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if perr.StatusCode != tt.status || perr.Retryable() != tt.retryable {
				t.Fatalf("status=%d retryable=%v", perr.StatusCode, perr.Retryable())
			}
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v marker, got %v", tt.marker, err)
			}
			if tt.retryAfter != "" && perr.RetryAfter != 2*time.Second {
				t.Fatalf("RetryAfter = %v", perr.RetryAfter)
			}
		})
	}
}

func TestDownloadWritesAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			return
		}
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewPixabayClient("k", 3)
	dest := filepath.Join(dir, "clips", "a.mp4")
	got, err := client.Download(context.Background(), srv.URL+"/clip", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("unexpected download: %q %v", data, err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatalf("expected .part removed, stat err=%v", err)
	}

	empty := filepath.Join(dir, "empty.mp4")
	if _, err := client.Download(context.Background(), srv.URL+"/empty", empty); err == nil {
		t.Fatal("expected error for empty body")
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatalf("empty download left a file behind")
	}
}

func TestConfiguredRejectsPlaceholderKeys(t *testing.T) {
	if NewPexelsClient("your_pexels_api_key_here", 5).Configured() {
		t.Fatal("placeholder key should not count as configured")
	}
	if NewPixabayClient("", 5).Configured() {
		t.Fatal("empty key should not count as configured")
	}
	if !NewPexelsClient("abc", 5).Configured() {
		t.Fatal("real key should be configured")
	}
}
