package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mmoto/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "reconcile", "mux", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"reconcile", "mux", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", services.Wrap(services.ErrTimeout, "footage", "search", "", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "footage", "download", "", nil), true},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), false},
		{"validation", services.Wrap(services.ErrValidation, "brief", "load", "", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsCanceled(t *testing.T) {
	if !services.IsCanceled(fmt.Errorf("stage: %w", context.Canceled)) {
		t.Fatal("expected context cancellation to be detected")
	}
	if !services.IsCanceled(services.Wrap(services.ErrCanceled, "pipeline", "", "", nil)) {
		t.Fatal("expected ErrCanceled marker to be detected")
	}
	if services.IsCanceled(errors.New("other")) {
		t.Fatal("unexpected cancellation for plain error")
	}
}
