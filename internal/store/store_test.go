package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_AddEntry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	date := time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)
	entry := &MoodEntry{
		Date:       date,
		MoodValue:  7,
		Mood:       "calm",
		Thoughts:   "slept well",
		Gratitude:  "coffee",
		Activities: []string{"walk", " reading ", "walk", ""},
		Weather:    &WeatherSnapshot{Temperature: 12.5, WeatherCode: 3, Humidity: 60, IsDay: true},
	}

	id, err := store.AddEntry(ctx, entry)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, entry.ID)
	assert.NotEmpty(t, entry.UUID)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, entry.UUID, got.UUID)
	assert.True(t, got.Date.Equal(date))
	assert.Equal(t, 7, got.MoodValue)
	assert.Equal(t, "calm", got.Mood)
	assert.Equal(t, "slept well", got.Thoughts)
	assert.Equal(t, "coffee", got.Gratitude)
	assert.Equal(t, []string{"walk", "reading"}, got.Activities)
	require.NotNil(t, got.Weather)
	assert.Equal(t, 12.5, got.Weather.Temperature)
	assert.True(t, got.Weather.IsDay)
	assert.Equal(t, SyncPending, got.Synced)
}

func TestStore_AddEntry_IDsIncrease(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 1; i <= 3; i++ {
		id, err := store.AddEntry(ctx, &MoodEntry{Date: time.Now(), MoodValue: i})
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestStore_AddEntry_Invalid(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry *MoodEntry
	}{
		{"missing date", &MoodEntry{MoodValue: 5}},
		{"mood too low", &MoodEntry{Date: time.Now(), MoodValue: 0}},
		{"mood too high", &MoodEntry{Date: time.Now(), MoodValue: 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddEntry(ctx, tt.entry)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListEntriesByDay(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	morning := time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local)
	evening := time.Date(2025, 6, 1, 22, 0, 0, 0, time.Local)
	nextDay := time.Date(2025, 6, 2, 7, 0, 0, 0, time.Local)

	for _, d := range []time.Time{morning, nextDay, evening} {
		_, err := store.AddEntry(ctx, &MoodEntry{Date: d, MoodValue: 5})
		require.NoError(t, err)
	}

	entries, err := store.ListEntriesByDay(ctx, time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Date.Equal(morning))
	assert.True(t, entries[1].Date.Equal(evening))

	entries, err = store.ListEntriesByDay(ctx, time.Date(2025, 6, 3, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListPendingSync(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.AddEntry(ctx, &MoodEntry{Date: time.Now(), MoodValue: 5})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, store.MarkSynced(ctx, ids[1]))

	pending, err := store.ListPendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[2], pending[1].ID)
}

func TestStore_MarkSynced_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.AddEntry(ctx, &MoodEntry{Date: time.Now(), MoodValue: 6})
	require.NoError(t, err)

	require.NoError(t, store.MarkSynced(ctx, id))
	require.NoError(t, store.MarkSynced(ctx, id), "marking twice must succeed")

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, SyncDelivered, entries[0].Synced)
}

func TestStore_MarkSynced_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.MarkSynced(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestStore_ClearEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddEntry(ctx, &MoodEntry{Date: time.Now(), MoodValue: 2})
	require.NoError(t, err)
	require.NoError(t, store.PutSetting(ctx, "notificationSettings", map[string]bool{"enabled": true}))

	require.NoError(t, store.ClearEntries(ctx))

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Settings survive a clear
	var v map[string]bool
	require.NoError(t, store.GetSetting(ctx, "notificationSettings", &v))
	assert.True(t, v["enabled"])
}

func TestStore_Settings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	type reminder struct {
		Enabled      bool   `json:"enabled"`
		ReminderTime string `json:"reminderTime"`
	}

	var got reminder
	assert.ErrorIs(t, store.GetSetting(ctx, "notificationSettings", &got), ErrNotFound)

	require.NoError(t, store.PutSetting(ctx, "notificationSettings", reminder{Enabled: true, ReminderTime: "20:00"}))
	require.NoError(t, store.GetSetting(ctx, "notificationSettings", &got))
	assert.Equal(t, reminder{Enabled: true, ReminderTime: "20:00"}, got)

	// Overwrite replaces the whole record
	require.NoError(t, store.PutSetting(ctx, "notificationSettings", reminder{Enabled: false, ReminderTime: "07:15"}))
	require.NoError(t, store.GetSetting(ctx, "notificationSettings", &got))
	assert.Equal(t, reminder{Enabled: false, ReminderTime: "07:15"}, got)
}

func TestMoodEntry_Payload(t *testing.T) {
	entry := &MoodEntry{
		ID:        9,
		UUID:      "abc",
		Date:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		MoodValue: 4,
		Mood:      "tired",
		Synced:    SyncPending,
	}

	p := entry.Payload()
	assert.Equal(t, "2025-01-02T03:04:05Z", p.Date)
	assert.Equal(t, 4, p.MoodValue)
	assert.Equal(t, "tired", p.Mood)
	assert.Nil(t, p.Weather)
}

func TestNormalizeActivities(t *testing.T) {
	assert.Nil(t, NormalizeActivities(nil))
	assert.Nil(t, NormalizeActivities([]string{" ", ""}))
	assert.Equal(t, []string{"yoga", "run"}, NormalizeActivities([]string{"yoga", "run", " yoga "}))
}
