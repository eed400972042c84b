package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"anisync/internal/config"
)

const userAgent = "anisync/0.1.0"

// Event identifies a notification kind.
type Event string

// Events published over a run's lifetime.
const (
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries the values interpolated into a notification message.
type Payload map[string]string

func (p Payload) value(key, fallback string) string {
	if v, ok := p[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// Service defines the notification surface exposed to the sync run.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	endpoint := topic
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://ntfy.sh/" + endpoint
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// Publish formats and sends one event. Events the service does not model are
// dropped without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	direction := payload.value("direction", "one-way")
	switch event {
	case EventRunCompleted:
		return message{
			title: "Anisync - Run Complete",
			body: fmt.Sprintf("✅ Sync complete (%s): %s applied, %s unresolved in %s",
				direction,
				payload.value("applied", "0"),
				payload.value("unresolved", "0"),
				payload.value("duration", "0s")),
			tags: []string{"anisync", "sync", "completed"},
		}, true
	case EventRunFailed:
		return message{
			title: "Anisync - Run Failed",
			body: fmt.Sprintf("❌ Sync failed (%s): %s",
				direction,
				payload.value("error", "unknown error")),
			tags:     []string{"anisync", "sync", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Anisync - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"anisync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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
	if msg.priority != "" && msg.priority != "default" {
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

// Noop returns a Service that drops every event.
func Noop() Service { return noopService{} }

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
