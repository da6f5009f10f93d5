// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on copy semantics and the simulated unavailable mode

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_AddEntry_ReturnsCopies(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	entry := &MoodEntry{Date: time.Now(), MoodValue: 6, Activities: []string{"walk"}}
	id, err := store.AddEntry(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NotEmpty(t, entry.UUID)

	// Mutating the caller's entry must not change what's stored
	entry.Activities[0] = "changed"

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"walk"}, entries[0].Activities)
}

func TestMockStore_InvalidEntry(t *testing.T) {
	store := NewMockStore()

	_, err := store.AddEntry(context.Background(), &MoodEntry{Date: time.Now(), MoodValue: 11})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestMockStore_MarkSynced(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	id, err := store.AddEntry(ctx, &MoodEntry{Date: time.Now(), MoodValue: 3})
	require.NoError(t, err)

	require.NoError(t, store.MarkSynced(ctx, id))
	require.NoError(t, store.MarkSynced(ctx, id))

	pending, err := store.ListPendingSync(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, store.MarkSynced(ctx, 999), ErrNotFound)
}

func TestMockStore_Unavailable(t *testing.T) {
	store := NewMockStore()
	store.Unavailable = true
	ctx := context.Background()

	_, err := store.ListEntries(ctx)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	_, err = store.AddEntry(ctx, &MoodEntry{Date: time.Now(), MoodValue: 5})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMockStore_Settings(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	var v map[string]any
	assert.ErrorIs(t, store.GetSetting(ctx, "missing", &v), ErrNotFound)

	require.NoError(t, store.PutSetting(ctx, "k", map[string]any{"enabled": true}))
	require.NoError(t, store.GetSetting(ctx, "k", &v))
	assert.Equal(t, true, v["enabled"])
}
