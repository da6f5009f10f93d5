// ABOUTME: Persisted reminder settings, notification permission and daily reminder state
// ABOUTME: All cross-invocation scheduler state lives in the entry store's settings table

package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/2389/mindmatters/internal/store"
)

// Settings keys in the store.
const (
	SettingsKey   = "notificationSettings"
	PermissionKey = "notificationPermission"
	StateKey      = "dailyReminderState"
)

// DailyReminderTag identifies the daily reminder notification.
const DailyReminderTag = "daily-reminder"

// Default reminder time when none has been saved.
const (
	DefaultHour   = 20
	DefaultMinute = 0
)

// ErrPermissionDenied is returned when notifications have not been granted.
var ErrPermissionDenied = errors.New("notification permission not granted")

// ErrInvalidTime is returned for an hour or minute out of range.
var ErrInvalidTime = errors.New("invalid reminder time")

// ReminderTime is a local wall-clock time of day.
type ReminderTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Validate checks the hour and minute ranges.
func (r ReminderTime) Validate() error {
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%w: hour %d outside 0-23", ErrInvalidTime, r.Hour)
	}
	if r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("%w: minute %d outside 0-59", ErrInvalidTime, r.Minute)
	}
	return nil
}

func (r ReminderTime) String() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// ParseReminderTime parses "HH:MM".
func ParseReminderTime(s string) (ReminderTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ReminderTime{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return ReminderTime{}, fmt.Errorf("%w: hour %q", ErrInvalidTime, h)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return ReminderTime{}, fmt.Errorf("%w: minute %q", ErrInvalidTime, m)
	}
	rt := ReminderTime{Hour: hour, Minute: minute}
	return rt, rt.Validate()
}

// Settings is the persisted reminder configuration.
type Settings struct {
	Enabled      bool         `json:"enabled"`
	ReminderTime ReminderTime `json:"reminderTime"`
}

// DefaultSettings is returned when nothing has been saved.
func DefaultSettings() Settings {
	return Settings{ReminderTime: ReminderTime{Hour: DefaultHour, Minute: DefaultMinute}}
}

// LoadSettings reads the reminder settings, defaulting to disabled at 20:00.
func LoadSettings(ctx context.Context, st store.Store) (Settings, error) {
	s := DefaultSettings()
	err := st.GetSetting(ctx, SettingsKey, &s)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// SaveSettings overwrites the reminder settings.
func SaveSettings(ctx context.Context, st store.Store, s Settings) error {
	return st.PutSetting(ctx, SettingsKey, s)
}

// Permission is the user's notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission validates a permission string.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	default:
		return "", fmt.Errorf("unknown permission %q", s)
	}
}

// LoadPermission reads the stored permission, defaulting to "default".
func LoadPermission(ctx context.Context, st store.Store) (Permission, error) {
	var p Permission
	err := st.GetSetting(ctx, PermissionKey, &p)
	if errors.Is(err, store.ErrNotFound) {
		return PermissionDefault, nil
	}
	if err != nil {
		return PermissionDefault, err
	}
	return p, nil
}

// SavePermission stores the permission.
func SavePermission(ctx context.Context, st store.Store, p Permission) error {
	return st.PutSetting(ctx, PermissionKey, p)
}

// reminderState records the last local day the daily reminder fired.
type reminderState struct {
	LastFiredDay string `json:"lastFiredDay"`
}

func loadReminderState(ctx context.Context, st store.Store) (reminderState, error) {
	var s reminderState
	err := st.GetSetting(ctx, StateKey, &s)
	if errors.Is(err, store.ErrNotFound) {
		return reminderState{}, nil
	}
	return s, err
}

// NextOccurrence returns the next time strictly after now at the given local
// time of day, in now's location.
func NextOccurrence(now time.Time, rt ReminderTime) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), rt.Hour, rt.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, rt.Hour, rt.Minute, 0, 0, now.Location())
	}
	return next
}
