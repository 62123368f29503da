package footage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mmoto/internal/services"
)

// Clip is a downloaded, probed source video.
type Clip struct {
	ID              string  `json:"id" yaml:"id"`
	Path            string  `json:"path" yaml:"path"`
	Keyword         string  `json:"keyword" yaml:"keyword"`
	Width           int     `json:"width" yaml:"width"`
	Height          int     `json:"height" yaml:"height"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
}

// Candidate is a search hit that has not been downloaded yet.
type Candidate struct {
	ID              string
	ThumbnailURL    string
	VideoURL        string
	Width           int
	Height          int
	DurationSeconds float64
	Keyword         string
	Provider        string
}

// Portrait reports whether the candidate is taller than wide.
func (c Candidate) Portrait() bool {
	return c.Height > c.Width
}

// Provider is a stock-footage source.
type Provider interface {
	Name() string
	Search(ctx context.Context, keyword string) ([]Candidate, error)
	Download(ctx context.Context, videoURL, dest string) (string, error)
}

// ProviderError describes a failed provider call. Network failures, 408, 429
// and 5xx responses are transient; 401 and 403 indicate bad credentials.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Provider, e.Op)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Retryable reports whether another attempt could succeed.
func (e *ProviderError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

func (e *ProviderError) Unwrap() []error {
	marker := services.ErrExternalTool
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		marker = services.ErrConfiguration
	case e.Retryable():
		marker = services.ErrTransient
	}
	if e.Err == nil {
		return []error{marker}
	}
	return []error{marker, e.Err}
}
