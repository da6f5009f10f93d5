// ABOUTME: Notification centre holding displayed notifications keyed by tag
// ABOUTME: Forwards displays to sinks and resolves clicks into window focus or open

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"
)

// ErrUnknownNotification is returned when a tag isn't being displayed.
var ErrUnknownNotification = errors.New("notification not displayed")

// Click actions.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

// Action is a button on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is a displayed notification.
type Notification struct {
	Tag     string    `json:"tag"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Icon    string    `json:"icon,omitempty"`
	Badge   string    `json:"badge,omitempty"`
	URL     string    `json:"url,omitempty"`
	Actions []Action  `json:"actions,omitempty"`
	ShownAt time.Time `json:"shownAt"`
}

// DefaultActions are attached to reminder notifications.
func DefaultActions() []Action {
	return []Action{
		{Action: ActionOpen, Title: "Open Journal"},
		{Action: ActionDismiss, Title: "Dismiss"},
	}
}

// Sink receives every displayed notification, e.g. a desktop bridge.
type Sink interface {
	Show(ctx context.Context, n Notification) error
}

// WindowFocuser focuses an open app window on url, or opens a new one.
type WindowFocuser interface {
	FocusOrOpen(ctx context.Context, url string) error
}

// Center tracks displayed notifications. Showing a tag that is already
// displayed replaces it instead of stacking a second one.
type Center struct {
	mu      sync.RWMutex
	shown   map[string]Notification
	sinks   []Sink
	defURL  string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewCenter creates a Center. defaultURL is opened for clicks on
// notifications without a URL.
func NewCenter(defaultURL string, logger *slog.Logger, sinks ...Sink) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		shown:   make(map[string]Notification),
		sinks:   sinks,
		defURL:  defaultURL,
		logger:  logger.With("component", "notify"),
		nowFunc: time.Now,
	}
}

// Show displays n. Sink failures are logged; the notification is still shown.
func (c *Center) Show(ctx context.Context, n Notification) {
	if n.ShownAt.IsZero() {
		n.ShownAt = c.nowFunc()
	}

	c.mu.Lock()
	_, replaced := c.shown[n.Tag]
	c.shown[n.Tag] = n
	c.mu.Unlock()

	c.logger.Info("notification displayed", "tag", n.Tag, "title", n.Title, "replaced", replaced)

	for _, sink := range c.sinks {
		if err := sink.Show(ctx, n); err != nil {
			c.logger.Warn("notification sink failed", "tag", n.Tag, "error", err)
		}
	}
}

// Get returns the displayed notification for tag.
func (c *Center) Get(tag string) (Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.shown[tag]
	return n, ok
}

// List returns displayed notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.RLock()
	out := make([]Notification, 0, len(c.shown))
	for _, n := range c.shown {
		out = append(out, n)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b Notification) int {
		return a.ShownAt.Compare(b.ShownAt)
	})
	return out
}

// Dismiss closes the notification for tag and reports whether it was shown.
func (c *Center) Dismiss(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.shown[tag]
	delete(c.shown, tag)
	return ok
}

// Click handles a click on a notification or one of its actions. "dismiss"
// closes it; "open" or a click on the body focuses an app window on the
// notification's URL and closes it once the window is up. A rejected action
// or a failed open leaves the notification displayed so the click can be
// retried.
func (c *Center) Click(ctx context.Context, tag, action string, windows WindowFocuser) error {
	n, ok := c.Get(tag)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNotification, tag)
	}

	switch action {
	case ActionDismiss:
		c.closeShown(n)
		c.logger.Debug("notification dismissed", "tag", tag)
		return nil
	case ActionOpen, "":
	default:
		return fmt.Errorf("unknown notification action %q", action)
	}

	url := n.URL
	if url == "" {
		url = c.defURL
	}
	if err := windows.FocusOrOpen(ctx, url); err != nil {
		return fmt.Errorf("opening app window: %w", err)
	}
	c.closeShown(n)
	return nil
}

// closeShown removes n unless a newer notification replaced its tag.
func (c *Center) closeShown(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.shown[n.Tag]; ok && cur.ShownAt.Equal(n.ShownAt) {
		delete(c.shown, n.Tag)
	}
}

// WebhookSink POSTs displayed notifications as JSON to a URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

// Show posts n to the webhook.
func (w *WebhookSink) Show(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
