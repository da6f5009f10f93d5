// ABOUTME: SQLite-backed cache storage owned by the worker process
// ABOUTME: Stores generations and their responses in a single cache database

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the cache database at path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	dsn := "file::memory:?_pragma=foreign_keys(ON)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		dsn = "file:" + filepath.ToSlash(path) +
			"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// Only the worker writes here; one connection also keeps :memory: coherent
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS generations (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS responses (
			generation TEXT NOT NULL REFERENCES generations(name) ON DELETE CASCADE,
			key TEXT NOT NULL,
			status INTEGER NOT NULL,
			header TEXT NOT NULL,
			body BLOB NOT NULL,
			type TEXT NOT NULL,
			url TEXT NOT NULL,
			stored_at TEXT NOT NULL,
			PRIMARY KEY (generation, key)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Open returns the named generation, creating it if needed.
func (s *SQLiteStorage) Open(ctx context.Context, name string) (Generation, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("opening generation %s: %w", name, err)
	}
	return &sqliteGeneration{db: s.db, name: name}, nil
}

// Names lists generations oldest first.
func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM generations ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning generation: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a generation and its responses.
func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("deleting generation %s: %w", name, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Close closes the cache database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type sqliteGeneration struct {
	db   *sql.DB
	name string
}

func (g *sqliteGeneration) Name() string { return g.name }

func (g *sqliteGeneration) Match(ctx context.Context, key string) (*Response, error) {
	var resp Response
	var header, typ, storedAt string
	err := g.db.QueryRowContext(ctx, `
		SELECT status, header, body, type, url, stored_at
		FROM responses WHERE generation = ? AND key = ?
	`, g.name, key).Scan(&resp.Status, &header, &resp.Body, &typ, &resp.URL, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", key, err)
	}

	resp.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	resp.Type = ResponseType(typ)
	resp.StoredAt, _ = time.Parse(time.RFC3339Nano, storedAt)
	return &resp, nil
}

func (g *sqliteGeneration) Put(ctx context.Context, key string, resp *Response) error {
	return g.PutAll(ctx, []Entry{{Key: key, Response: resp}})
}

func (g *sqliteGeneration) PutAll(ctx context.Context, entries []Entry) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The generation may have been deleted since it was opened
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		g.name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("ensuring generation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO responses (generation, key, status, header, body, type, url, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(generation, key) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			type = excluded.type,
			url = excluded.url,
			stored_at = excluded.stored_at
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		header, err := json.Marshal(e.Response.Header)
		if err != nil {
			return fmt.Errorf("encoding header for %s: %w", e.Key, err)
		}
		storedAt := e.Response.StoredAt
		if storedAt.IsZero() {
			storedAt = time.Now().UTC()
		}
		body := e.Response.Body
		if body == nil {
			body = []byte{}
		}
		if _, err := stmt.ExecContext(ctx,
			g.name, e.Key, e.Response.Status, string(header), body,
			string(e.Response.Type), e.Response.URL, storedAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("storing %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing responses: %w", err)
	}
	return nil
}

func (g *sqliteGeneration) Keys(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT key FROM responses WHERE generation = ? ORDER BY rowid ASC`, g.name)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
