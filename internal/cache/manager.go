// ABOUTME: Cache manager implementing the install and activate lifecycle
// ABOUTME: Pre-caches the manifest all-or-nothing and deletes stale generations

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/2389/mindmatters/internal/assets"
)

var (
	// ErrNotInstalled is returned by Activate before a successful Install.
	ErrNotInstalled = errors.New("cache generation not installed")
	// ErrInstallInProgress is returned when Install is called during another install.
	ErrInstallInProgress = errors.New("cache install already in progress")
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// State is the lifecycle state of a cache generation.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InstallError reports the assets that kept a generation from installing.
type InstallError struct {
	Generation string
	Failed     []string
	Err        error
}

func (e *InstallError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("install %s failed: %v", e.Generation, e.Err)
	}
	return fmt.Sprintf("install %s failed: %d asset(s) unavailable: %s",
		e.Generation, len(e.Failed), strings.Join(e.Failed, ", "))
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Name is the version-qualified generation name, e.g. "mindmatters-cache-v1".
	Name     string
	Origin   *url.URL
	Manifest *Manifest
	Client   Doer
	Logger   *slog.Logger
}

// Manager owns the current cache generation.
type Manager struct {
	storage  Storage
	name     string
	origin   *url.URL
	manifest *Manifest
	client   Doer
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	skipWaiting bool
	claimed     bool
}

// NewManager creates a manager for one generation name.
func NewManager(storage Storage, cfg ManagerConfig) *Manager {
	manifest := cfg.Manifest
	if manifest == nil {
		manifest = DefaultManifest()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		storage:  storage,
		name:     cfg.Name,
		origin:   cfg.Origin,
		manifest: manifest,
		client:   client,
		logger:   logger.With("component", "cache", "generation", cfg.Name),
	}
}

// Name returns the current generation name.
func (m *Manager) Name() string {
	return m.name
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Claimed reports whether activation has taken control of all sessions.
func (m *Manager) Claimed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed
}

// SkipWaiting requests that activation happen as soon as install completes.
func (m *Manager) SkipWaiting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipWaiting = true
}

// WaitingSkipped reports whether SkipWaiting has been requested.
func (m *Manager) WaitingSkipped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skipWaiting
}

// URLFor resolves an origin-relative path against the origin.
func (m *Manager) URLFor(path string) *url.URL {
	return m.origin.ResolveReference(&url.URL{Path: path})
}

// OfflineKey returns the cache key of the offline page.
func (m *Manager) OfflineKey() string {
	return Key(m.URLFor(m.manifest.OfflinePath()))
}

// Install fetches every manifest asset and stores them in the current
// generation. Nothing is written unless every fetch succeeds, so a failed
// install leaves the previous generation serving. Install may be retried
// after a failure; once installed it is a no-op. The lock is held only for
// state changes, so Serving keeps answering while assets download.
func (m *Manager) Install(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateInstalled, StateActivating, StateActive:
		m.mu.Unlock()
		return nil
	case StateInstalling:
		m.mu.Unlock()
		return ErrInstallInProgress
	}
	m.state = StateInstalling
	m.mu.Unlock()

	m.logger.Info("installing cache generation", "assets", len(m.manifest.Assets))
	entries, err := m.download(ctx)
	if err == nil {
		var gen Generation
		gen, err = m.storage.Open(ctx, m.name)
		if err == nil {
			err = gen.PutAll(ctx, entries)
		}
		if err != nil {
			err = &InstallError{Generation: m.name, Err: err}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateRedundant
		return err
	}
	m.state = StateInstalled
	m.skipWaiting = true
	m.logger.Info("cache generation installed", "entries", len(entries))
	return nil
}

// download fetches the manifest assets plus the built-in offline page.
func (m *Manager) download(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(m.manifest.Assets)+1)
	var failed []string
	var firstErr error
	for _, path := range m.manifest.Assets {
		resp, err := m.fetch(ctx, path)
		if err != nil {
			m.logger.Warn("asset fetch failed", "path", path, "error", err)
			failed = append(failed, path)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		entries = append(entries, Entry{Key: Key(m.URLFor(path)), Response: resp})
	}
	if len(failed) > 0 {
		return nil, &InstallError{Generation: m.name, Failed: failed, Err: firstErr}
	}

	if m.manifest.BuiltinOffline() {
		page, err := assets.OfflinePage()
		if err != nil {
			return nil, &InstallError{Generation: m.name, Err: err}
		}
		u := m.URLFor(DefaultOfflinePage)
		entries = append(entries, Entry{Key: Key(u), Response: &Response{
			Status:   http.StatusOK,
			Header:   http.Header{"Content-Type": []string{assets.HTMLContentType}},
			Body:     page,
			Type:     TypeBasic,
			URL:      u.String(),
			StoredAt: time.Now().UTC(),
		}})
	}
	return entries, nil
}

func (m *Manager) fetch(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URLFor(path).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}

	stored, err := FromHTTP(resp, TypeBasic)
	if err != nil {
		return nil, err
	}
	if !stored.OK() {
		return nil, fmt.Errorf("unexpected status %d", stored.Status)
	}
	return stored, nil
}

// Activate deletes every generation other than the current one and takes
// control of all open sessions.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateActive:
		return nil
	case StateInstalled:
	default:
		return fmt.Errorf("%w: state is %s", ErrNotInstalled, m.state)
	}
	m.state = StateActivating

	names, err := m.storage.Names(ctx)
	if err != nil {
		m.state = StateInstalled
		return fmt.Errorf("listing generations: %w", err)
	}

	var errs []error
	for _, name := range names {
		if name == m.name {
			continue
		}
		if _, err := m.storage.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", name, err))
			continue
		}
		m.logger.Info("deleted stale cache generation", "stale", name)
	}
	if err := errors.Join(errs...); err != nil {
		m.state = StateInstalled
		return err
	}

	m.state = StateActive
	m.claimed = true
	m.logger.Info("cache generation active")
	return nil
}

// Serving returns the generation requests are answered from: the current
// one once installed, otherwise the newest generation left by an earlier run.
func (m *Manager) Serving(ctx context.Context) (Generation, error) {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state == StateInstalled || state == StateActivating || state == StateActive {
		return m.storage.Open(ctx, m.name)
	}

	names, err := m.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrNoGeneration
	}
	return m.storage.Open(ctx, names[len(names)-1])
}
