package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mmoto/internal/services"
)

const (
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
)

// StatusError is returned for non-2xx responses from an OpenAI-compatible API.
// Retryable statuses (408, 429, 5xx) match services.ErrTransient.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	op := e.Op
	if op == "" {
		op = "llm request"
	}
	return fmt.Sprintf("%s: http %d: %s", op, e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

func (e *StatusError) Unwrap() error {
	if e.Retryable() {
		return services.ErrTransient
	}
	return services.ErrExternalTool
}

// RetryPolicy implements exponential backoff shared by the HTTP clients that
// talk to OpenAI-compatible endpoints.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleeper     func(time.Duration)
}

// DefaultRetryPolicy returns 5 attempts with a 1s base and 10s ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		BaseDelay:   defaultRetryBaseDelay,
		MaxDelay:    defaultRetryMaxDelay,
	}
}

// Attempts returns the configured attempt count, never less than one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay decides whether err warrants another attempt after the given
// 1-based attempt, and how long to wait first.
func (p RetryPolicy) Delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.Attempts() || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return p.backoff(attempt), true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !statusErr.Retryable() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return p.capDelay(statusErr.RetryAfter), true
		}
		return p.backoff(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return p.backoff(attempt), true
	}

	return 0, false
}

// Sleep waits for delay or until ctx is done.
func (p RetryPolicy) Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the exponential delay before retrying after attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.backoff(attempt)
}

// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		base = defaultRetryBaseDelay
	}
	if base == 0 {
		return 0
	}
	maxDelay := p.maxDelay()
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p RetryPolicy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultRetryMaxDelay
}

func (p RetryPolicy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

// ParseRetryAfter interprets a Retry-After header in seconds or HTTP-date form.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
