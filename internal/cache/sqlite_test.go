package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// storages runs fn against both Storage implementations.
func storages(t *testing.T, fn func(t *testing.T, s Storage)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, setupTestStorage(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStorage()) })
}

func TestStorage_PutAndMatch(t *testing.T) {
	storages(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		gen, err := s.Open(ctx, "app-cache-v1")
		require.NoError(t, err)

		_, err = gen.Match(ctx, "http://origin/app.js")
		assert.ErrorIs(t, err, ErrCacheMiss)

		resp := &Response{
			Status: 200,
			Header: http.Header{"Content-Type": []string{"application/javascript"}},
			Body:   []byte("console.log(1)"),
			Type:   TypeBasic,
			URL:    "http://origin/app.js",
		}
		require.NoError(t, gen.Put(ctx, "http://origin/app.js", resp))

		got, err := gen.Match(ctx, "http://origin/app.js")
		require.NoError(t, err)
		assert.Equal(t, 200, got.Status)
		assert.Equal(t, "application/javascript", got.Header.Get("Content-Type"))
		assert.Equal(t, "console.log(1)", string(got.Body))
		assert.Equal(t, TypeBasic, got.Type)

		// Replacing keeps the original key position
		require.NoError(t, gen.Put(ctx, "http://origin/b", &Response{Status: 200}))
		require.NoError(t, gen.Put(ctx, "http://origin/app.js", &Response{Status: 200, Body: []byte("v2")}))

		keys, err := gen.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://origin/app.js", "http://origin/b"}, keys)

		got, err = gen.Match(ctx, "http://origin/app.js")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got.Body))
	})
}

func TestStorage_NamesAndDelete(t *testing.T) {
	storages(t, func(t *testing.T, s Storage) {
		ctx := context.Background()

		v1, err := s.Open(ctx, "app-cache-v1")
		require.NoError(t, err)
		require.NoError(t, v1.Put(ctx, "k", &Response{Status: 200}))
		_, err = s.Open(ctx, "app-cache-v2")
		require.NoError(t, err)

		names, err := s.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"app-cache-v1", "app-cache-v2"}, names)

		deleted, err := s.Delete(ctx, "app-cache-v1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = s.Delete(ctx, "app-cache-v1")
		require.NoError(t, err)
		assert.False(t, deleted)

		names, err = s.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"app-cache-v2"}, names)

		// Reopening a deleted generation starts empty
		v1, err = s.Open(ctx, "app-cache-v1")
		require.NoError(t, err)
		keys, err := v1.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestStorage_PutAll(t *testing.T) {
	storages(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		gen, err := s.Open(ctx, "app-cache-v1")
		require.NoError(t, err)

		require.NoError(t, gen.PutAll(ctx, []Entry{
			{Key: "/a", Response: &Response{Status: 200, Body: []byte("a")}},
			{Key: "/b", Response: &Response{Status: 200, Body: []byte("b")}},
		}))

		keys, err := gen.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/b"}, keys)
	})
}

func TestSQLiteStorage_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	gen, err := s.Open(ctx, "app-cache-v1")
	require.NoError(t, err)
	require.NoError(t, gen.Put(ctx, "/index.html", &Response{Status: 200, Body: []byte("hi")}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()

	gen, err = s.Open(ctx, "app-cache-v1")
	require.NoError(t, err)
	resp, err := gen.Match(ctx, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(resp.Body))
}
