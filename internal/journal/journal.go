// ABOUTME: Journal service used by the foreground app to write and read mood entries
// ABOUTME: Captures a weather snapshot on save and degrades reads to empty when the store is down

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/2389/mindmatters/internal/external"
	"github.com/2389/mindmatters/internal/store"
)

// WeatherSource provides the current weather for new entries.
type WeatherSource interface {
	Current(ctx context.Context) (*store.WeatherSnapshot, external.Source, error)
}

// Service reads and writes journal entries.
type Service struct {
	store   store.Store
	weather WeatherSource
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Service. weather may be nil to skip snapshots.
func New(st store.Store, weather WeatherSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		weather: weather,
		logger:  logger.With("component", "journal"),
		now:     time.Now,
	}
}

// EntryInput is what the user writes.
type EntryInput struct {
	MoodValue  int
	Mood       string
	Thoughts   string
	Gratitude  string
	Activities []string
	// Date defaults to now.
	Date time.Time
	// SkipWeather leaves the entry without a weather snapshot.
	SkipWeather bool
}

// Save validates and stores a new entry as unsynced. A weather failure
// never blocks the save; the entry is stored without a snapshot.
func (s *Service) Save(ctx context.Context, in EntryInput) (*store.MoodEntry, error) {
	entry := &store.MoodEntry{
		Date:       in.Date,
		MoodValue:  in.MoodValue,
		Mood:       strings.TrimSpace(in.Mood),
		Thoughts:   strings.TrimSpace(in.Thoughts),
		Gratitude:  strings.TrimSpace(in.Gratitude),
		Activities: in.Activities,
		Synced:     store.SyncPending,
	}
	if entry.Date.IsZero() {
		entry.Date = s.now()
	}
	if entry.Mood == "" {
		entry.Mood = MoodLabel(entry.MoodValue)
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if s.weather != nil && !in.SkipWeather {
		snap, src, err := s.weather.Current(ctx)
		if err != nil {
			s.logger.Warn("saving entry without weather", "error", err)
		} else {
			entry.Weather = snap
			s.logger.Debug("weather captured", "source", src)
		}
	}

	if _, err := s.store.AddEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving entry: %w", err)
	}
	s.logger.Info("entry saved", "id", entry.ID, "mood", entry.MoodValue)
	return entry, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
// When the store is unavailable it logs and returns an empty list.
func (s *Service) Recent(ctx context.Context, limit int) []*store.MoodEntry {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		s.degraded("listing entries", err)
		return []*store.MoodEntry{}
	}
	SortNewestFirst(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Today returns today's entries, newest first, or empty on store failure.
func (s *Service) Today(ctx context.Context) []*store.MoodEntry {
	entries, err := s.store.ListEntriesByDay(ctx, s.now())
	if err != nil {
		s.degraded("listing today's entries", err)
		return []*store.MoodEntry{}
	}
	SortNewestFirst(entries)
	return entries
}

// Pending returns entries not yet synced.
func (s *Service) Pending(ctx context.Context) ([]*store.MoodEntry, error) {
	return s.store.ListPendingSync(ctx)
}

// Reset deletes every entry. Settings are kept.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.ClearEntries(ctx); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	s.logger.Info("all entries cleared")
	return nil
}

func (s *Service) degraded(op string, err error) {
	if errors.Is(err, store.ErrStoreUnavailable) {
		s.logger.Warn("store unavailable, showing no entries", "op", op, "error", err)
		return
	}
	s.logger.Error("unexpected store error", "op", op, "error", err)
}

// SortNewestFirst orders entries by date descending, breaking ties by id.
func SortNewestFirst(entries []*store.MoodEntry) {
	slices.SortStableFunc(entries, func(a, b *store.MoodEntry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

// MoodLabel maps a mood value to the label used when none is given.
func MoodLabel(value int) string {
	switch {
	case value <= 2:
		return "awful"
	case value <= 4:
		return "low"
	case value <= 6:
		return "okay"
	case value <= 8:
		return "good"
	default:
		return "great"
	}
}
