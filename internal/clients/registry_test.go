// ABOUTME: Tests for the window registry
// ABOUTME: Covers register, focus routing, open fallback, context cleanup and concurrency

package clients

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (f *fakeOpener) Open(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.opened = append(f.opened, url)
	return nil
}

func newTestRegistry(t *testing.T, opener Opener) *Registry {
	t.Helper()
	r, err := NewRegistry("http://127.0.0.1:3000", opener, nil)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func receive(t *testing.T, ch <-chan Command) Command {
	t.Helper()
	select {
	case cmd := <-ch:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
		return Command{}
	}
}

func TestRegistry_FocusesConnectedWindow(t *testing.T) {
	opener := &fakeOpener{}
	r := newTestRegistry(t, opener)

	ch, id := r.Register(t.Context(), "/")
	require.NotEmpty(t, id)

	require.NoError(t, r.FocusOrOpen(context.Background(), "/journal"))

	cmd := receive(t, ch)
	assert.Equal(t, Command{Type: CommandFocus, URL: "/journal"}, cmd)
	assert.Empty(t, opener.opened)

	windows := r.List()
	require.Len(t, windows, 1)
	assert.Equal(t, "/journal", windows[0].URL)
	assert.False(t, windows[0].LastFocused.IsZero())
}

func TestRegistry_PrefersMostRecentlyFocused(t *testing.T) {
	r := newTestRegistry(t, nil)
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	tick := base
	r.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	ch1, id1 := r.Register(t.Context(), "/a")
	ch2, _ := r.Register(t.Context(), "/b")
	require.True(t, r.Focused(id1, ""))

	require.NoError(t, r.FocusOrOpen(context.Background(), "/journal"))

	receive(t, ch1)
	select {
	case <-ch2:
		t.Fatal("only one window should be focused")
	default:
	}
}

func TestRegistry_OpensWhenNoWindow(t *testing.T) {
	opener := &fakeOpener{}
	r := newTestRegistry(t, opener)

	require.NoError(t, r.FocusOrOpen(context.Background(), "/journal"))
	assert.Equal(t, []string{"http://127.0.0.1:3000/journal"}, opener.opened)
}

func TestRegistry_NoWindowNoOpener(t *testing.T) {
	r := newTestRegistry(t, nil)
	err := r.FocusOrOpen(context.Background(), "/journal")
	assert.ErrorIs(t, err, ErrNoWindow)
}

func TestRegistry_OpenerFailure(t *testing.T) {
	r := newTestRegistry(t, &fakeOpener{err: errors.New("no display")})
	err := r.FocusOrOpen(context.Background(), "/journal")
	assert.Error(t, err)
}

func TestRegistry_FullWindowFallsThrough(t *testing.T) {
	opener := &fakeOpener{}
	r := newTestRegistry(t, opener)

	_, id := r.Register(t.Context(), "/")
	for range windowBufferSize {
		require.True(t, r.Send(id, Command{Type: CommandNavigate, URL: "/"}))
	}

	require.NoError(t, r.FocusOrOpen(context.Background(), "/journal"))
	assert.Len(t, opener.opened, 1, "a stuck window is skipped")
}

func TestRegistry_ContextCancelUnregisters(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := r.Register(ctx, "/")
	assert.Equal(t, 1, r.Count())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes on cancel")
	case <-time.After(time.Second):
		t.Fatal("window was not unregistered")
	}
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_UnregisterTwice(t *testing.T) {
	r := newTestRegistry(t, nil)
	_, id := r.Register(t.Context(), "/")

	r.Unregister(id)
	r.Unregister(id)
	assert.False(t, r.Send(id, Command{Type: CommandFocus}))
	assert.False(t, r.Focused(id, "/"))
}

func TestRegistry_Broadcast(t *testing.T) {
	r := newTestRegistry(t, nil)
	ch1, _ := r.Register(t.Context(), "/")
	ch2, _ := r.Register(t.Context(), "/journal")

	assert.Equal(t, 2, r.Broadcast(Command{Type: CommandNavigate, URL: "/"}))
	receive(t, ch1)
	receive(t, ch2)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t, &fakeOpener{})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			ch, _ := r.Register(ctx, "/")
			_ = r.FocusOrOpen(context.Background(), "/journal")
			r.Broadcast(Command{Type: CommandNavigate})
			cancel()
			for range ch {
			}
		}()
	}
	wg.Wait()
}

func TestBrowserOpener_CommandOverride(t *testing.T) {
	o := BrowserOpener{Command: []string{"true"}}
	assert.Equal(t, []string{"true"}, o.command())
	assert.NotEmpty(t, BrowserOpener{}.command())
}

func TestBrowserOpener_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := BrowserOpener{Command: []string{"true"}}.Open(ctx, "http://example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
