// ABOUTME: Online/offline monitor that probes a URL on an interval
// ABOUTME: Calls the online hook whenever connectivity is restored

package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State is the last observed connectivity.
type State int

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Doer performs HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Monitor.
type Config struct {
	ProbeURL string
	Interval time.Duration
	Client   Doer
	Logger   *slog.Logger
	// OnOnline runs when the state becomes online, including the first
	// successful probe after startup.
	OnOnline func(ctx context.Context)
}

// Monitor tracks connectivity by probing ProbeURL.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   Doer
	onOnline func(ctx context.Context)
	logger   *slog.Logger

	mu      sync.RWMutex
	state   State
	changed time.Time
}

// New creates a Monitor.
func New(cfg Config) *Monitor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		probeURL: cfg.ProbeURL,
		interval: interval,
		client:   client,
		onOnline: cfg.OnOnline,
		logger:   logger.With("component", "connectivity"),
	}
}

// State returns the current state and when it last changed.
func (m *Monitor) State() (State, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.changed
}

// Online reports whether the last probe succeeded.
func (m *Monitor) Online() bool {
	s, _ := m.State()
	return s == StateOnline
}

// Check probes once, records the result and fires OnOnline on restoration.
// Any HTTP response counts as online; only transport failures are offline.
func (m *Monitor) Check(ctx context.Context) State {
	next := StateOnline
	if err := m.probe(ctx); err != nil {
		next = StateOffline
		m.logger.Debug("probe failed", "url", m.probeURL, "error", err)
	}
	m.set(ctx, next)
	return next
}

// ReportOffline records a failure observed elsewhere, e.g. a failed fetch,
// so the next successful probe counts as a restoration.
func (m *Monitor) ReportOffline(ctx context.Context) {
	m.set(ctx, StateOffline)
}

// Observe records the outcome of a request made elsewhere: a transport
// error means offline, any response means online.
func (m *Monitor) Observe(ctx context.Context, err error) {
	if err != nil {
		m.set(ctx, StateOffline)
		return
	}
	m.set(ctx, StateOnline)
}

// TrackingDoer wraps client so every request it makes feeds Observe.
func (m *Monitor) TrackingDoer(client Doer) Doer {
	return doerFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := client.Do(req)
		if req.Context().Err() == nil {
			m.Observe(req.Context(), err)
		}
		return resp, err
	})
}

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func (m *Monitor) set(ctx context.Context, next State) {
	m.mu.Lock()
	prev := m.state
	if prev != next {
		m.state = next
		m.changed = time.Now()
	}
	m.mu.Unlock()

	if prev == next {
		return
	}
	m.logger.Info("connectivity changed", "from", prev.String(), "to", next.String())
	if next == StateOnline && m.onOnline != nil {
		m.onOnline(ctx)
	}
}

func (m *Monitor) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return fmt.Errorf("building probe: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
