package transcode

import (
	"context"
	"fmt"
	"strings"

	"mmoto/internal/services"
)

const stderrTailLines = 15

// Error describes a failed ffmpeg or ffprobe invocation.
type Error struct {
	Op       string
	Args     []string
	ExitCode int
	Stderr   string
	Timeout  bool
	Canceled bool
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	switch {
	case e.Timeout:
		b.WriteString(": timed out")
	case e.Canceled:
		b.WriteString(": canceled")
	default:
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

// Unwrap exposes the classification marker alongside the underlying cause.
func (e *Error) Unwrap() []error {
	marker := services.ErrExternalTool
	switch {
	case e.Timeout:
		marker = services.ErrTimeout
	case e.Canceled:
		marker = context.Canceled
	}
	if e.Err == nil {
		return []error{marker}
	}
	return []error{marker, e.Err}
}

// StderrTail keeps the last lines of ffmpeg output, which carry the actual error.
func StderrTail(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
