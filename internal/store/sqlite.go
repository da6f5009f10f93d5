// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Applies embedded migrations and discards connections made stale by another process

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/2389/mindmatters/internal/store/migrations"

	_ "modernc.org/sqlite"
)

// errClosed is reported when an operation runs after Close.
var errClosed = errors.New("store closed")

// SQLiteStore implements the Store interface using SQLite.
//
// The connection is opened lazily and re-validated before each operation:
// when another process has migrated the database past the version this
// connection opened with, the stale connection is closed and reopened.
type SQLiteStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	db      *sql.DB
	version uint
	closed  bool
}

// NewSQLiteStore creates a new SQLite store at the given path and opens it
// immediately. The schema is migrated to the latest version.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	s := NewLazySQLiteStore(path)
	if err := s.ensureFresh(context.Background()); err != nil {
		return nil, unavailable("opening database", err)
	}
	s.logger.Info("SQLite store initialized", "path", path, "schema_version", s.version)
	return s, nil
}

// NewLazySQLiteStore returns a store that opens the database on first use.
// A failed open is not remembered, so the next operation tries again.
func NewLazySQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path:   path,
		logger: slog.Default().With("component", "store"),
	}
}

// SchemaVersion returns the migration version of the current connection.
func (s *SQLiteStore) SchemaVersion() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// open creates the connection and runs migrations. Must be called with mu held.
func (s *SQLiteStore) open() error {
	dsn := s.path
	memory := s.path == ":memory:"
	if !memory {
		dir := filepath.Dir(s.path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		dsn = "file:" + filepath.ToSlash(s.path) +
			"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.version = version
	return nil
}

// runMigrations applies the embedded migrations and returns the resulting version.
// A database migrated past the embedded set fails here (blocked upgrade).
func runMigrations(db *sql.DB) (uint, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("initialising migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return 0, fmt.Errorf("loading embedded migrations: %w", err)
	}
	defer func() {
		_ = sourceDriver.Close()
	}()

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("creating migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// readVersion returns the migration version recorded in the database.
func readVersion(ctx context.Context, db *sql.DB) (uint, error) {
	var version int64
	var dirty bool
	err := db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, err
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", version)
	}
	return uint(version), nil
}

// ensureFresh opens the connection if needed and discards it when another
// process has upgraded the schema since it was opened.
func (s *SQLiteStore) ensureFresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}

	if s.db == nil {
		return s.open()
	}

	current, err := readVersion(ctx, s.db)
	if err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}
	if current <= s.version {
		return nil
	}

	s.logger.Warn("schema upgraded by another process, discarding stale connection",
		"connection_version", s.version,
		"database_version", current,
	)
	_ = s.db.Close()
	s.db = nil
	return s.open()
}

// withDB runs fn against a fresh connection. Errors other than the store's
// own sentinels are reported as ErrStoreUnavailable.
func (s *SQLiteStore) withDB(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	if err := s.ensureFresh(ctx); err != nil {
		return unavailable(op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return unavailable(op, errClosed)
	}

	err := fn(s.db)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidEntry) {
		return err
	}
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.db == nil {
		return nil
	}
	s.logger.Info("closing SQLite store")
	err := s.db.Close()
	s.db = nil
	return err
}

// AddEntry validates and inserts an entry, assigning its surrogate id.
// A UUID is generated when the entry has none.
func (s *SQLiteStore) AddEntry(ctx context.Context, entry *MoodEntry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	if entry.UUID == "" {
		entry.UUID = uuid.New().String()
	}
	entry.Activities = NormalizeActivities(entry.Activities)

	activities, weather, err := encodeEntryJSON(entry)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.withDB(ctx, "adding entry", func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, `
			INSERT INTO mood_entries (uuid, date, day, mood_value, mood, thoughts, gratitude, activities, weather, synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			entry.UUID,
			entry.Date.UTC().Format(time.RFC3339Nano),
			entry.Day(),
			entry.MoodValue,
			entry.Mood,
			entry.Thoughts,
			entry.Gratitude,
			activities,
			weather,
			entry.Synced,
		)
		if err != nil {
			return fmt.Errorf("inserting entry: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	entry.ID = id
	s.logger.Debug("added entry", "id", id, "uuid", entry.UUID)
	return id, nil
}

func encodeEntryJSON(entry *MoodEntry) (activities, weather sql.NullString, err error) {
	if len(entry.Activities) > 0 {
		b, err := json.Marshal(entry.Activities)
		if err != nil {
			return activities, weather, fmt.Errorf("encoding activities: %w", err)
		}
		activities = sql.NullString{String: string(b), Valid: true}
	}
	if entry.Weather != nil {
		b, err := json.Marshal(entry.Weather)
		if err != nil {
			return activities, weather, fmt.Errorf("encoding weather: %w", err)
		}
		weather = sql.NullString{String: string(b), Valid: true}
	}
	return activities, weather, nil
}

const entryColumns = `id, uuid, date, mood_value, mood, thoughts, gratitude, activities, weather, synced`

// ListEntries returns every entry in insertion order. Callers sort for display.
func (s *SQLiteStore) ListEntries(ctx context.Context) ([]*MoodEntry, error) {
	return s.queryEntries(ctx, "listing entries",
		`SELECT `+entryColumns+` FROM mood_entries ORDER BY id ASC`)
}

// ListEntriesByDay returns the entries created on the local calendar day of day.
// This uses the idx_mood_entries_day index.
func (s *SQLiteStore) ListEntriesByDay(ctx context.Context, day time.Time) ([]*MoodEntry, error) {
	return s.queryEntries(ctx, "listing entries by day",
		`SELECT `+entryColumns+` FROM mood_entries WHERE day = ? ORDER BY id ASC`, DayOf(day))
}

// ListPendingSync returns the entries not yet delivered, oldest first.
// This uses the idx_mood_entries_synced index.
func (s *SQLiteStore) ListPendingSync(ctx context.Context) ([]*MoodEntry, error) {
	return s.queryEntries(ctx, "listing pending entries",
		`SELECT `+entryColumns+` FROM mood_entries WHERE synced = 0 ORDER BY id ASC`)
}

func (s *SQLiteStore) queryEntries(ctx context.Context, op, query string, args ...any) ([]*MoodEntry, error) {
	var entries []*MoodEntry
	err := s.withDB(ctx, op, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying entries: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*MoodEntry, error) {
	var e MoodEntry
	var entryUUID sql.NullString
	var dateStr string
	var activities, weather sql.NullString

	if err := rows.Scan(
		&e.ID,
		&entryUUID,
		&dateStr,
		&e.MoodValue,
		&e.Mood,
		&e.Thoughts,
		&e.Gratitude,
		&activities,
		&weather,
		&e.Synced,
	); err != nil {
		return nil, fmt.Errorf("scanning entry: %w", err)
	}

	e.UUID = entryUUID.String

	var err error
	e.Date, err = time.Parse(time.RFC3339Nano, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parsing date: %w", err)
	}

	if activities.Valid {
		if err := json.Unmarshal([]byte(activities.String), &e.Activities); err != nil {
			return nil, fmt.Errorf("decoding activities: %w", err)
		}
	}
	if weather.Valid {
		e.Weather = &WeatherSnapshot{}
		if err := json.Unmarshal([]byte(weather.String), e.Weather); err != nil {
			return nil, fmt.Errorf("decoding weather: %w", err)
		}
	}

	return &e, nil
}

// MarkSynced flags an entry as delivered. Marking an already delivered entry
// is a no-op. Returns ErrNotFound for an unknown id.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64) error {
	return s.withDB(ctx, "marking entry synced", func(db *sql.DB) error {
		result, err := db.ExecContext(ctx,
			`UPDATE mood_entries SET synced = 1 WHERE id = ? AND synced = 0`, id)
		if err != nil {
			return fmt.Errorf("updating entry: %w", err)
		}
		n, _ := result.RowsAffected()
		if n > 0 {
			return nil
		}

		var exists int
		err = db.QueryRowContext(ctx, `SELECT 1 FROM mood_entries WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking entry existence: %w", err)
		}
		// Already synced, that's fine
		return nil
	})
}

// ClearEntries removes every entry. Settings are kept.
func (s *SQLiteStore) ClearEntries(ctx context.Context) error {
	err := s.withDB(ctx, "clearing entries", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `DELETE FROM mood_entries`)
		return err
	})
	if err == nil {
		s.logger.Info("cleared all entries")
	}
	return err
}

// GetSetting decodes the setting stored under key into v.
// Returns ErrNotFound when the key has never been written.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string, v any) error {
	return s.withDB(ctx, "reading setting", func(db *sql.DB) error {
		var raw string
		err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE id = ?`, key).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying setting: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			return fmt.Errorf("decoding setting %q: %w", key, err)
		}
		return nil
	})
}

// PutSetting creates or overwrites the setting stored under key.
func (s *SQLiteStore) PutSetting(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}

	return s.withDB(ctx, "writing setting", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO settings (id, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, string(raw), time.Now().UTC().Format(time.RFC3339))
		return err
	})
}
