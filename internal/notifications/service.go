package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mmoto/internal/config"
)

const userAgent = "mmoto/0.1"

// Event identifies a notification kind.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunDegraded  Event = "run_degraded"
	EventRunFailed    Event = "run_failed"
	EventRunStopped   Event = "run_stopped"
	EventTest         Event = "test"
)

// Payload carries the values an event message is built from. Known keys:
// topic, video, duration, degradations, error, stage.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.NotifyOnSuccess,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.build(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) build(event Event, payload Payload) (message, bool) {
	topic := payload.text("topic")
	switch event {
	case EventRunCompleted:
		if !n.onSuccess {
			return message{}, false
		}
		return message{
			title: "mmoto - Video Ready",
			body:  fmt.Sprintf("🎬 %s\n%s", topic, videoLine(payload)),
			tags:  []string{"mmoto", "render", "completed"},
		}, true
	case EventRunDegraded:
		return message{
			title: "mmoto - Video Ready (degraded)",
			body:  fmt.Sprintf("⚠️ %s\n%s\nDegradations: %s", topic, videoLine(payload), payload.text("degradations")),
			tags:  []string{"mmoto", "render", "degraded"},
		}, true
	case EventRunFailed:
		label := "render"
		if stage := payload.text("stage"); stage != "" {
			label = stage
		}
		return message{
			title:    "mmoto - Error",
			body:     fmt.Sprintf("❌ %s failed during %s: %s", topic, label, orUnknown(payload.text("error"))),
			tags:     []string{"mmoto", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "mmoto - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mmoto", "test"},
			priority: "low",
		}, true
	default:
		// Started and stopped runs are user-initiated.
		return message{}, false
	}
}

func videoLine(payload Payload) string {
	video := payload.text("video")
	if seconds, ok := payload["duration"].(float64); ok && seconds > 0 {
		return fmt.Sprintf("%s (%.0fs)", video, seconds)
	}
	return video
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
