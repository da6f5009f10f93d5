// Package store provides the local entry database using SQLite.
//
// # Data Model
//
//   - MoodEntry: a dated mood record with optional thoughts, gratitude,
//     activity tags and a weather snapshot. Entries are keyed by an
//     auto-incrementing id and carry a UUID used as the remote idempotency key.
//   - Settings: JSON documents keyed by a fixed id, e.g. "notificationSettings"
//     and "dailyReminderState".
//
// Each entry has a sync flag that only moves from SyncPending to SyncDelivered.
//
// # Sharing Between Processes
//
// The worker and the foreground CLI open the same database file. WAL mode
// lets them read concurrently:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Schema changes are applied with golang-migrate from the embedded migrations
// directory. Before each operation the store compares the schema version in
// the file with the version its connection was opened at. When another
// process has upgraded the file, the stale connection is closed and reopened.
// A file newer than this binary's migrations reports ErrStoreUnavailable.
//
// # Error Handling
//
//   - ErrNotFound: requested entry or setting does not exist
//   - ErrInvalidEntry: entry without a date or with a mood value outside 1-10
//   - ErrStoreUnavailable: the database could not be opened or an operation
//     failed. Readers degrade to empty results; writers surface the failure.
//
// # Testing
//
// MockStore is an in-memory implementation with an Unavailable switch for
// exercising degraded paths.
package store
