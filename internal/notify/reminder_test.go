package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mindmatters/internal/store"
)

func newTestReminder(t *testing.T) (*Reminder, *store.MockStore, *Center) {
	t.Helper()
	st := store.NewMockStore()
	center := NewCenter("/journal", nil)
	r := NewReminder(st, center, ReminderContent{
		Title: "MindMatters Reminder",
		Body:  "Take a moment to log your mood",
		URL:   "/journal",
	}, nil)
	return r, st, center
}

func enableReminder(t *testing.T, st store.Store, hour, minute int) {
	t.Helper()
	require.NoError(t, SaveSettings(context.Background(), st, Settings{
		Enabled:      true,
		ReminderTime: ReminderTime{Hour: hour, Minute: minute},
	}))
}

func TestReminder_FiresWithinHour(t *testing.T) {
	r, st, center := newTestReminder(t)
	enableReminder(t, st, 20, 0)

	// Scheduled for 20:00, checked at 20:05 the same day
	now := time.Date(2025, 3, 14, 20, 5, 0, 0, time.Local)
	fired, err := r.CheckAndFireDailyReminder(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, fired)

	n, ok := center.Get(DailyReminderTag)
	require.True(t, ok)
	assert.Equal(t, "MindMatters Reminder", n.Title)
	assert.Equal(t, "/journal", n.URL)
	assert.Len(t, n.Actions, 2)
}

func TestReminder_SuppressedWhenEntryExists(t *testing.T) {
	r, st, center := newTestReminder(t)
	enableReminder(t, st, 20, 0)

	_, err := st.AddEntry(context.Background(), &store.MoodEntry{
		Date:      time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local),
		MoodValue: 6,
	})
	require.NoError(t, err)

	fired, err := r.CheckAndFireDailyReminder(context.Background(), time.Date(2025, 3, 14, 20, 10, 0, 0, time.Local))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Empty(t, center.List())
}

func TestReminder_YesterdaysEntryDoesNotSuppress(t *testing.T) {
	r, st, _ := newTestReminder(t)
	enableReminder(t, st, 20, 0)

	_, err := st.AddEntry(context.Background(), &store.MoodEntry{
		Date:      time.Date(2025, 3, 13, 21, 0, 0, 0, time.Local),
		MoodValue: 6,
	})
	require.NoError(t, err)

	fired, err := r.CheckAndFireDailyReminder(context.Background(), time.Date(2025, 3, 14, 20, 10, 0, 0, time.Local))
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestReminder_OncePerDay(t *testing.T) {
	r, st, center := newTestReminder(t)
	enableReminder(t, st, 20, 0)
	ctx := context.Background()

	fired, err := r.CheckAndFireDailyReminder(ctx, time.Date(2025, 3, 14, 20, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.True(t, fired)
	center.Dismiss(DailyReminderTag)

	fired, err = r.CheckAndFireDailyReminder(ctx, time.Date(2025, 3, 14, 20, 15, 0, 0, time.Local))
	require.NoError(t, err)
	assert.False(t, fired, "second check in the same hour must not fire again")
	assert.Empty(t, center.List())

	fired, err = r.CheckAndFireDailyReminder(ctx, time.Date(2025, 3, 15, 20, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.True(t, fired, "next day fires again")
}

func TestReminder_OutsideHour(t *testing.T) {
	r, st, _ := newTestReminder(t)
	enableReminder(t, st, 20, 0)

	for _, h := range []int{19, 21, 8} {
		fired, err := r.CheckAndFireDailyReminder(context.Background(), time.Date(2025, 3, 14, h, 30, 0, 0, time.Local))
		require.NoError(t, err)
		assert.False(t, fired, "hour %d", h)
	}
}

func TestReminder_Disabled(t *testing.T) {
	r, st, _ := newTestReminder(t)
	require.NoError(t, SaveSettings(context.Background(), st, Settings{
		Enabled:      false,
		ReminderTime: ReminderTime{Hour: 20},
	}))

	fired, err := r.CheckAndFireDailyReminder(context.Background(), time.Date(2025, 3, 14, 20, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestReminder_NeverConfigured(t *testing.T) {
	r, _, _ := newTestReminder(t)

	fired, err := r.CheckAndFireDailyReminder(context.Background(), time.Date(2025, 3, 14, 20, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestReminder_StoreUnavailable(t *testing.T) {
	r, st, _ := newTestReminder(t)
	st.Unavailable = true

	_, err := r.CheckAndFireDailyReminder(context.Background(), time.Now())
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}
