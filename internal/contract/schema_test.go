// ABOUTME: Schema contract for the two on-disk databases: journal entries and the response cache
// ABOUTME: A dropped or renamed column fails here before an older database meets newer code

package contract

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/2389/mindmatters/internal/cache"
	"github.com/2389/mindmatters/internal/store"
)

type surface struct {
	tables  map[string][]string
	indexes []string
}

var entrySurface = surface{
	tables: map[string][]string{
		"mood_entries": {
			"id", "uuid", "date", "day", "mood_value", "mood",
			"thoughts", "gratitude", "activities", "weather", "synced",
		},
		"settings":          {"id", "value", "updated_at"},
		"schema_migrations": {"version", "dirty"},
	},
	indexes: []string{
		"idx_mood_entries_day",
		"idx_mood_entries_synced",
		"idx_mood_entries_uuid",
	},
}

var cacheSurface = surface{
	tables: map[string][]string{
		"generations": {"name", "created_at"},
		"responses": {
			"generation", "key", "status", "header",
			"body", "type", "url", "stored_at",
		},
	},
}

// openRaw opens a second connection next to the one owned by the package
// under test, so the schema can be inspected without exported internals.
func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func names(t *testing.T, db *sql.DB, query string, args ...any) map[string]bool {
	t.Helper()
	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		out[name] = true
	}
	require.NoError(t, rows.Err())
	return out
}

func checkSurface(t *testing.T, db *sql.DB, want surface) {
	t.Helper()

	for table, cols := range want.tables {
		t.Run(table, func(t *testing.T) {
			got := names(t, db, "SELECT name FROM pragma_table_info(?)", table)
			require.NotEmpty(t, got, "table %s missing", table)
			for _, col := range cols {
				assert.True(t, got[col], "column %s.%s missing", table, col)
			}
		})
	}

	if len(want.indexes) > 0 {
		got := names(t, db, "SELECT name FROM sqlite_master WHERE type = 'index'")
		for _, idx := range want.indexes {
			assert.True(t, got[idx], "index %s missing", idx)
		}
	}
}

func TestEntrySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	checkSurface(t, openRaw(t, path), entrySurface)
	assert.Equal(t, uint(2), s.SchemaVersion(), "new migration added; update the contract")
}

func TestCacheSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := cache.NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	checkSurface(t, openRaw(t, path), cacheSurface)
}

// Reopening must not re-run migrations or drop data.
func TestEntrySchemaReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	assert.Equal(t, uint(2), s.SchemaVersion())
}
