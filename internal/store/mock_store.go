// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to simulate an unavailable database

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	entries  []*MoodEntry
	settings map[string][]byte
	nextID   int64

	// Unavailable makes every operation fail with ErrStoreUnavailable.
	Unavailable bool
	// MarkSyncedErr, when set, is returned by MarkSynced.
	MarkSyncedErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings: make(map[string][]byte),
		nextID:   1,
	}
}

func (m *MockStore) check(op string) error {
	if m.Unavailable {
		return fmt.Errorf("%w: %s: simulated failure", ErrStoreUnavailable, op)
	}
	return nil
}

// AddEntry stores a copy of entry and assigns its id.
func (m *MockStore) AddEntry(ctx context.Context, entry *MoodEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("adding entry"); err != nil {
		return 0, err
	}
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	if entry.UUID == "" {
		entry.UUID = uuid.New().String()
	}
	entry.Activities = NormalizeActivities(entry.Activities)
	entry.ID = m.nextID
	m.nextID++

	m.entries = append(m.entries, copyEntry(entry))
	return entry.ID, nil
}

// ListEntries returns copies of all entries in insertion order.
func (m *MockStore) ListEntries(ctx context.Context) ([]*MoodEntry, error) {
	return m.filter("listing entries", func(*MoodEntry) bool { return true })
}

// ListEntriesByDay returns entries on the local calendar day of day.
func (m *MockStore) ListEntriesByDay(ctx context.Context, day time.Time) ([]*MoodEntry, error) {
	key := DayOf(day)
	return m.filter("listing entries by day", func(e *MoodEntry) bool { return e.Day() == key })
}

// ListPendingSync returns entries not yet delivered.
func (m *MockStore) ListPendingSync(ctx context.Context) ([]*MoodEntry, error) {
	return m.filter("listing pending entries", func(e *MoodEntry) bool { return e.Synced == SyncPending })
}

func (m *MockStore) filter(op string, keep func(*MoodEntry) bool) ([]*MoodEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(op); err != nil {
		return nil, err
	}

	var result []*MoodEntry
	for _, e := range m.entries {
		if keep(e) {
			result = append(result, copyEntry(e))
		}
	}
	return result, nil
}

// MarkSynced flags an entry as delivered.
func (m *MockStore) MarkSynced(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("marking entry synced"); err != nil {
		return err
	}
	if m.MarkSyncedErr != nil {
		return m.MarkSyncedErr
	}

	for _, e := range m.entries {
		if e.ID == id {
			e.Synced = SyncDelivered
			return nil
		}
	}
	return ErrNotFound
}

// ClearEntries removes every entry.
func (m *MockStore) ClearEntries(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("clearing entries"); err != nil {
		return err
	}
	m.entries = nil
	return nil
}

// GetSetting decodes the setting stored under key into v.
func (m *MockStore) GetSetting(ctx context.Context, key string, v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("reading setting"); err != nil {
		return err
	}
	raw, ok := m.settings[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

// PutSetting stores v under key.
func (m *MockStore) PutSetting(ctx context.Context, key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("writing setting"); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}
	m.settings[key] = raw
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

func copyEntry(e *MoodEntry) *MoodEntry {
	c := *e
	c.Activities = slices.Clone(e.Activities)
	if e.Weather != nil {
		w := *e.Weather
		c.Weather = &w
	}
	return &c
}
