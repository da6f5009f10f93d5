// ABOUTME: Registry of open app windows connected to the worker over SSE
// ABOUTME: Delivers focus/navigate commands to windows and opens a new one when none is connected

package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// windowBufferSize is the command buffer for each window.
	windowBufferSize = 16
)

// ErrNoWindow is returned when no window is connected and no opener is set.
var ErrNoWindow = errors.New("no app window available")

// Command kinds sent to windows.
const (
	CommandFocus    = "focus"
	CommandNavigate = "navigate"
)

// Command asks a window to do something.
type Command struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Window describes a connected app window.
type Window struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastFocused time.Time `json:"lastFocused,omitzero"`
}

// Opener opens a new app window on an absolute URL.
type Opener interface {
	Open(ctx context.Context, url string) error
}

type window struct {
	info Window
	ch   chan Command
}

// Registry tracks connected windows. Windows register by holding an SSE
// stream open; the registration ends when that stream's context ends.
type Registry struct {
	mu      sync.RWMutex
	windows map[string]*window
	origin  *url.URL
	opener  Opener
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates a registry. origin resolves relative URLs for the
// opener. Pass nil opener to disable opening new windows.
func NewRegistry(origin string, opener Opener, logger *slog.Logger) (*Registry, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parsing origin: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		windows: make(map[string]*window),
		origin:  u,
		opener:  opener,
		logger:  logger.With("component", "clients"),
		now:     time.Now,
	}, nil
}

// Register adds a window showing pageURL. It returns the window's command
// channel and id. The window is removed when ctx is cancelled.
func (r *Registry) Register(ctx context.Context, pageURL string) (<-chan Command, string) {
	id := uuid.New().String()
	w := &window{
		info: Window{ID: id, URL: pageURL, ConnectedAt: r.now()},
		ch:   make(chan Command, windowBufferSize),
	}

	r.mu.Lock()
	r.windows[id] = w
	r.mu.Unlock()

	r.logger.Debug("window registered", "window_id", id, "url", pageURL)

	go func() {
		<-ctx.Done()
		r.Unregister(id)
	}()

	return w.ch, id
}

// Unregister removes a window and closes its channel.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok {
		return
	}
	delete(r.windows, id)
	close(w.ch)

	r.logger.Debug("window unregistered", "window_id", id)
}

// Focused records that the window gained focus, optionally at a new URL.
func (r *Registry) Focused(id, pageURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok {
		return false
	}
	w.info.LastFocused = r.now()
	if pageURL != "" {
		w.info.URL = pageURL
	}
	return true
}

// List returns connected windows, most recently focused first.
func (r *Registry) List() []Window {
	r.mu.RLock()
	out := make([]Window, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w.info)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Window) int {
		if c := b.LastFocused.Compare(a.LastFocused); c != 0 {
			return c
		}
		return b.ConnectedAt.Compare(a.ConnectedAt)
	})
	return out
}

// Count returns the number of connected windows.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.windows)
}

// Send delivers cmd to one window. Non-blocking: it reports false when the
// window is gone or its buffer is full.
func (r *Registry) Send(id string, cmd Command) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[id]
	if !ok {
		return false
	}
	select {
	case w.ch <- cmd:
		return true
	default:
		r.logger.Debug("dropped command for slow window", "window_id", id, "type", cmd.Type)
		return false
	}
}

// FocusOrOpen focuses the most recently used window and navigates it to
// pageURL. With no reachable window it opens a new one.
func (r *Registry) FocusOrOpen(ctx context.Context, pageURL string) error {
	for _, w := range r.List() {
		if r.Send(w.ID, Command{Type: CommandFocus, URL: pageURL}) {
			r.Focused(w.ID, pageURL)
			r.logger.Info("focused app window", "window_id", w.ID, "url", pageURL)
			return nil
		}
	}

	if r.opener == nil {
		return ErrNoWindow
	}

	abs, err := r.resolve(pageURL)
	if err != nil {
		return err
	}
	if err := r.opener.Open(ctx, abs); err != nil {
		return fmt.Errorf("opening window: %w", err)
	}
	r.logger.Info("opened app window", "url", abs)
	return nil
}

// Broadcast sends cmd to every window and returns how many accepted it.
func (r *Registry) Broadcast(cmd Command) int {
	// Sends are non-blocking, so holding the read lock keeps channels open
	r.mu.RLock()
	defer r.mu.RUnlock()

	sent := 0
	for _, w := range r.windows {
		select {
		case w.ch <- cmd:
			sent++
		default:
		}
	}
	return sent
}

func (r *Registry) resolve(pageURL string) (string, error) {
	ref, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing window url: %w", err)
	}
	return r.origin.ResolveReference(ref).String(), nil
}

// Close removes every window and closes their channels.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, w := range r.windows {
		close(w.ch)
		delete(r.windows, id)
	}
	r.logger.Debug("registry closed")
}
