package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tierwatch/internal/config"
)

const userAgent = "tierwatch/0.1.0"

// Service defines the alert surface used by the dispatcher and the daemon.
type Service interface {
	NotifyChangeFailed(ctx context.Context, kind, id string, err error) error
	NotifyUnhandledKind(ctx context.Context, kind, id string) error
	NotifyListenerStopped(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		failures:  cfg.Notifications.Failures,
		unhandled: cfg.Notifications.Unhandled,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	failures  bool
	unhandled bool
}

func (n *ntfyService) NotifyChangeFailed(ctx context.Context, kind, id string, err error) error {
	if !n.failures {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "tierwatch - Change Failed",
		message:  fmt.Sprintf("❌ Location tag change on %s %s failed: %s", kind, id, reason),
		tags:     []string{"tierwatch", "change", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUnhandledKind(ctx context.Context, kind, id string) error {
	if !n.unhandled {
		return nil
	}
	data := payload{
		title:   "tierwatch - Unhandled Change",
		message: fmt.Sprintf("Location tag changed on %s %s but no handler exists for that kind\nManual review required", kind, id),
		tags:    []string{"tierwatch", "unhandled", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyListenerStopped(ctx context.Context, err error) error {
	message := "Listener stopped"
	priority := "default"
	if err != nil {
		message = fmt.Sprintf("❌ Listener stopped: %s", strings.TrimSpace(err.Error()))
		priority = "high"
	}
	data := payload{
		title:    "tierwatch - Listener Stopped",
		message:  message,
		tags:     []string{"tierwatch", "listener", "stopped"},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "tierwatch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"tierwatch", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyChangeFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyUnhandledKind(context.Context, string, string) error       { return nil }
func (noopService) NotifyListenerStopped(context.Context, error) error              { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
