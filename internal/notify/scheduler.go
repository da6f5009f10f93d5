// ABOUTME: Foreground half of the notification scheduler
// ABOUTME: Persists reminder settings and hands schedule/cancel requests to the worker

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/mindmatters/internal/messaging"
	"github.com/2389/mindmatters/internal/store"
)

// ErrHandoff is returned when settings were saved but the worker could not
// be told. The periodic daily check still covers the recurring reminder.
var ErrHandoff = errors.New("reminder saved but worker hand-off failed")

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Title       string
	Body        string
	JournalPath string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Scheduler schedules and cancels the daily reminder from the foreground app.
type Scheduler struct {
	store       store.Store
	sender      messaging.Sender
	title       string
	body        string
	journalPath string
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(st store.Store, sender messaging.Sender, cfg SchedulerConfig) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:       st,
		sender:      sender,
		title:       cfg.Title,
		body:        cfg.Body,
		journalPath: cfg.JournalPath,
		now:         now,
		logger:      logger.With("component", "notify"),
	}
}

// Schedule enables the daily reminder at hour:minute local time and returns
// the next time it will fire.
func (s *Scheduler) Schedule(ctx context.Context, hour, minute int) (time.Time, error) {
	rt := ReminderTime{Hour: hour, Minute: minute}
	if err := rt.Validate(); err != nil {
		return time.Time{}, err
	}

	perm, err := LoadPermission(ctx, s.store)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading permission: %w", err)
	}
	if perm != PermissionGranted {
		return time.Time{}, fmt.Errorf("%w (permission is %s)", ErrPermissionDenied, perm)
	}

	next := NextOccurrence(s.now(), rt)
	if err := SaveSettings(ctx, s.store, Settings{Enabled: true, ReminderTime: rt}); err != nil {
		return time.Time{}, fmt.Errorf("saving reminder settings: %w", err)
	}

	err = s.sender.Send(ctx, messaging.Message{
		Type:      messaging.TypeScheduleNotification,
		Title:     s.title,
		Body:      s.body,
		Tag:       DailyReminderTag,
		URL:       s.journalPath,
		Timestamp: next,
	})
	if err != nil {
		s.logger.Warn("reminder saved but not handed to worker", "error", err)
		return next, fmt.Errorf("%w: %w", ErrHandoff, err)
	}

	s.logger.Info("daily reminder scheduled", "time", rt.String(), "next", next)
	return next, nil
}

// Cancel disables the daily reminder, keeping the last chosen time.
// Cancelling when nothing is scheduled succeeds.
func (s *Scheduler) Cancel(ctx context.Context) error {
	settings, err := LoadSettings(ctx, s.store)
	if err != nil {
		return fmt.Errorf("reading reminder settings: %w", err)
	}
	settings.Enabled = false
	if err := SaveSettings(ctx, s.store, settings); err != nil {
		return fmt.Errorf("saving reminder settings: %w", err)
	}

	if err := s.sender.Send(ctx, messaging.Message{
		Type: messaging.TypeCancelNotifications,
		Tag:  DailyReminderTag,
	}); err != nil {
		s.logger.Warn("reminder disabled but worker not told", "error", err)
		return fmt.Errorf("%w: %w", ErrHandoff, err)
	}

	s.logger.Info("daily reminder cancelled")
	return nil
}

// Status returns the current settings, with 20:00 when none are saved.
func (s *Scheduler) Status(ctx context.Context) (Settings, error) {
	return LoadSettings(ctx, s.store)
}

// Permission returns the stored notification permission.
func (s *Scheduler) Permission(ctx context.Context) (Permission, error) {
	return LoadPermission(ctx, s.store)
}

// SetPermission records the user's notification permission.
func (s *Scheduler) SetPermission(ctx context.Context, p Permission) error {
	if _, err := ParsePermission(string(p)); err != nil {
		return err
	}
	return SavePermission(ctx, s.store, p)
}
