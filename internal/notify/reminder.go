// ABOUTME: Periodic daily reminder check run by the worker
// ABOUTME: Fires at most once per local day and stays quiet once today's entry exists

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/mindmatters/internal/store"
)

// ReminderContent is what the daily reminder displays.
type ReminderContent struct {
	Title string
	Body  string
	Icon  string
	Badge string
	URL   string
}

// Reminder is the background half of the scheduler.
type Reminder struct {
	store   store.Store
	center  *Center
	content ReminderContent
	logger  *slog.Logger
}

// NewReminder creates a Reminder displaying through center.
func NewReminder(st store.Store, center *Center, content ReminderContent, logger *slog.Logger) *Reminder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminder{
		store:   st,
		center:  center,
		content: content,
		logger:  logger.With("component", "notify"),
	}
}

// Notification builds the reminder notification.
func (r *Reminder) Notification() Notification {
	return Notification{
		Tag:     DailyReminderTag,
		Title:   r.content.Title,
		Body:    r.content.Body,
		Icon:    r.content.Icon,
		Badge:   r.content.Badge,
		URL:     r.content.URL,
		Actions: DefaultActions(),
	}
}

// CheckAndFireDailyReminder displays the daily reminder when reminders are
// enabled, now falls in the configured hour, it hasn't fired today and no
// entry exists for today. It reports whether the reminder was displayed.
func (r *Reminder) CheckAndFireDailyReminder(ctx context.Context, now time.Time) (bool, error) {
	settings, err := LoadSettings(ctx, r.store)
	if err != nil {
		return false, fmt.Errorf("reading reminder settings: %w", err)
	}
	if !settings.Enabled {
		return false, nil
	}
	if now.Hour() != settings.ReminderTime.Hour {
		return false, nil
	}

	today := store.DayOf(now)
	state, err := loadReminderState(ctx, r.store)
	if err != nil {
		return false, fmt.Errorf("reading reminder state: %w", err)
	}
	if state.LastFiredDay == today {
		return false, nil
	}

	entries, err := r.store.ListEntriesByDay(ctx, now)
	if err != nil {
		return false, fmt.Errorf("checking today's entries: %w", err)
	}
	if len(entries) > 0 {
		r.logger.Debug("daily reminder suppressed, entry already written", "day", today)
		return false, nil
	}

	n := r.Notification()
	n.ShownAt = now
	r.center.Show(ctx, n)

	if err := r.store.PutSetting(ctx, StateKey, reminderState{LastFiredDay: today}); err != nil {
		// Shown already; a failed record only risks a repeat within the hour
		r.logger.Warn("failed to record daily reminder", "error", err)
	}
	return true, nil
}
