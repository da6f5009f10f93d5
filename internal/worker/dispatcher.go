// ABOUTME: Event dispatcher mapping lifecycle and runtime events to handlers
// ABOUTME: Every handler runs behind a recover so a failure is logged, never fatal

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/mindmatters/internal/cache"
	"github.com/2389/mindmatters/internal/interceptor"
	"github.com/2389/mindmatters/internal/messaging"
)

// EventKind names an event the worker reacts to.
type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventFetch             EventKind = "fetch"
	EventSync              EventKind = "sync"
	EventPeriodicSync      EventKind = "periodic-sync"
	EventMessage           EventKind = "message"
	EventNotificationClick EventKind = "notification-click"
)

// ErrNoHandler is returned when an event kind has no handler.
var ErrNoHandler = errors.New("no handler for event")

// Event is one invocation. Only the fields for its Kind are set.
type Event struct {
	Kind EventKind
	// Time is when the event was raised.
	Time time.Time

	// Fetch
	Request *interceptor.Request
	Respond func(*cache.Response, interceptor.Source)

	// Message
	Message *messaging.Message

	// Notification click
	Tag    string
	Action string
}

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher routes events to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventKind]Handler
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[EventKind]Handler),
		logger:   logger.With("component", "dispatcher"),
	}
}

// Register sets the handler for kind, replacing any earlier one.
func (d *Dispatcher) Register(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Dispatch runs the handler for ev. Errors and panics are logged and
// returned so request-driven callers can report them; the worker itself
// never stops because of one.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (err error) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	d.mu.RLock()
	h, ok := d.handlers[ev.Kind]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("event dropped", "kind", ev.Kind)
		return fmt.Errorf("%w: %s", ErrNoHandler, ev.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", "kind", ev.Kind, "panic", r)
			err = fmt.Errorf("%s handler panicked: %v", ev.Kind, r)
		}
	}()

	start := time.Now()
	if err = h(ctx, ev); err != nil {
		d.logger.Error("event handler failed", "kind", ev.Kind, "error", err)
		return err
	}
	d.logger.Debug("event handled", "kind", ev.Kind, "duration", time.Since(start))
	return nil
}
