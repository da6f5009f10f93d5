// ABOUTME: Message channel between the foreground app and the background worker
// ABOUTME: Defines the message envelope and an HTTP client that posts to the worker

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message types understood by the worker.
const (
	TypeScheduleNotification = "SCHEDULE_NOTIFICATION"
	TypeCancelNotifications  = "CANCEL_NOTIFICATIONS"
	TypeSyncNow              = "SYNC_NOW"
	TypeSkipWaiting          = "SKIP_WAITING"
)

// MessagePath is the worker endpoint messages are posted to.
const MessagePath = "/_worker/message"

// ErrNoWorker is returned when the worker can't be reached.
var ErrNoWorker = errors.New("worker not reachable")

// Message is one message on the channel. Fields beyond Type are used by
// SCHEDULE_NOTIFICATION only.
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Validate checks the message type and the fields that type needs.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeScheduleNotification:
		if m.Timestamp.IsZero() {
			return errors.New("schedule message requires a timestamp")
		}
		if strings.TrimSpace(m.Title) == "" {
			return errors.New("schedule message requires a title")
		}
	case TypeCancelNotifications, TypeSyncNow, TypeSkipWaiting:
	case "":
		return errors.New("message type is required")
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Reply is the worker's answer to a message.
type Reply struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Sender delivers messages to the worker.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client posts messages to a running worker over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the worker listening at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Send posts msg and waits for the worker to accept it.
// An ID is assigned when msg has none.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+MessagePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoWorker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		var reply Reply
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			return fmt.Errorf("worker rejected %s: %s", msg.Type, reply.Error)
		}
		return fmt.Errorf("worker rejected %s: status %d", msg.Type, resp.StatusCode)
	}
	return nil
}
