// Package notify implements the daily reminder.
//
// The foreground half (Scheduler) validates a time of day, checks the
// notification permission, persists {enabled, reminderTime} and hands a
// SCHEDULE_NOTIFICATION message with the absolute fire time to the worker.
//
// The background half lives in the worker:
//
//   - Timers: one-shot in-process timers keyed by tag. They do not survive a
//     restart.
//   - Reminder: CheckAndFireDailyReminder runs on the periodic tick and is
//     the recurring mechanism. It fires within the configured hour, once per
//     local day, and never when an entry for today already exists.
//   - Center: displayed notifications keyed by tag. Showing the same tag
//     replaces the earlier notification. Clicks focus or open an app window.
//
// Settings keys:
//
//	notificationSettings    {"enabled":true,"reminderTime":{"hour":20,"minute":0}}
//	notificationPermission  "granted" | "denied" | "default"
//	dailyReminderState      {"lastFiredDay":"2025-03-14"}
package notify
