// ABOUTME: Store interface and data types for the local entry database
// ABOUTME: Defines MoodEntry, WeatherSnapshot and the Store interface shared by worker and CLI

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entry or setting does not exist
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable is returned when the database cannot be opened or a
// read/write against it fails. Callers degrade to empty results (reads) or
// surface a save failure (writes).
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrInvalidEntry is returned when an entry lacks a date or has a mood value
// outside 1-10.
var ErrInvalidEntry = errors.New("invalid entry")

// Sync states. An entry only ever moves from SyncPending to SyncDelivered.
const (
	SyncPending   = 0
	SyncDelivered = 1
)

// Mood value bounds
const (
	MinMoodValue = 1
	MaxMoodValue = 10
)

// DayLayout is the calendar-day key used by the day index.
const DayLayout = "2006-01-02"

// WeatherSnapshot is the weather captured when an entry was created.
// It is never refreshed afterwards.
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"`
	WeatherCode int     `json:"weatherCode"`
	Humidity    float64 `json:"humidity"`
	IsDay       bool    `json:"isDay"`
}

// MoodEntry is a single dated mood/journal record
type MoodEntry struct {
	ID         int64
	UUID       string // client identity, sent to the remote as the idempotency key
	Date       time.Time
	MoodValue  int
	Mood       string
	Thoughts   string
	Gratitude  string
	Activities []string
	Weather    *WeatherSnapshot
	Synced     int
}

// EntryPayload is the JSON body delivered to the remote sync endpoint.
// Local-only fields (id, synced) are excluded.
type EntryPayload struct {
	Date       string           `json:"date"`
	MoodValue  int              `json:"moodValue"`
	Mood       string           `json:"mood,omitempty"`
	Thoughts   string           `json:"thoughts,omitempty"`
	Activities []string         `json:"activities,omitempty"`
	Gratitude  string           `json:"gratitude,omitempty"`
	Weather    *WeatherSnapshot `json:"weather,omitempty"`
}

// Payload returns the data payload of the entry.
func (e *MoodEntry) Payload() EntryPayload {
	return EntryPayload{
		Date:       e.Date.UTC().Format(time.RFC3339Nano),
		MoodValue:  e.MoodValue,
		Mood:       e.Mood,
		Thoughts:   e.Thoughts,
		Activities: e.Activities,
		Gratitude:  e.Gratitude,
		Weather:    e.Weather,
	}
}

// Day returns the local calendar day of the entry.
func (e *MoodEntry) Day() string {
	return DayOf(e.Date)
}

// DayOf returns the local calendar day key for t.
func DayOf(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// Validate checks that the entry carries the fields that make it meaningful.
func (e *MoodEntry) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}
	if e.MoodValue < MinMoodValue || e.MoodValue > MaxMoodValue {
		return fmt.Errorf("%w: mood value %d outside %d-%d", ErrInvalidEntry, e.MoodValue, MinMoodValue, MaxMoodValue)
	}
	return nil
}

// NormalizeActivities trims, drops empties and deduplicates activity tags,
// keeping first-seen order.
func NormalizeActivities(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Store defines the local entry database shared by the worker and the
// foreground app. Both may hold it open at the same time.
type Store interface {
	// Entries
	AddEntry(ctx context.Context, entry *MoodEntry) (int64, error)
	ListEntries(ctx context.Context) ([]*MoodEntry, error)
	ListEntriesByDay(ctx context.Context, day time.Time) ([]*MoodEntry, error)
	ListPendingSync(ctx context.Context) ([]*MoodEntry, error)
	MarkSynced(ctx context.Context, id int64) error
	ClearEntries(ctx context.Context) error

	// Settings are JSON documents keyed by a fixed id
	GetSetting(ctx context.Context, key string, v any) error
	PutSetting(ctx context.Context, key string, v any) error

	Close() error
}
