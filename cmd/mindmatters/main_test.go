package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mindmatters/internal/messaging"
)

// fakeWorker records messages posted to the worker endpoint.
type fakeWorker struct {
	mu       sync.Mutex
	messages []messaging.Message
}

func (f *fakeWorker) received() []messaging.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messaging.Message(nil), f.messages...)
}

// setupCLI points the CLI at a temp data dir and a worker address. With
// worker nil the address refuses connections.
func setupCLI(t *testing.T, worker *fakeWorker) {
	t.Helper()
	dir := t.TempDir()

	var addr string
	if worker != nil {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var msg messaging.Message
			_ = json.NewDecoder(r.Body).Decode(&msg)
			worker.mu.Lock()
			worker.messages = append(worker.messages, msg)
			worker.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(messaging.Reply{ID: msg.ID, Status: "ok"})
		}))
		t.Cleanup(srv.Close)
		addr = srv.Listener.Addr().String()
	} else {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr = ln.Addr().String()
		require.NoError(t, ln.Close())
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("server:\n  http_addr: %q\ndatabase:\n  path: %q\ncache:\n  path: %q\n",
		addr, filepath.Join(dir, "entries.db"), filepath.Join(dir, "cache.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	t.Setenv("MINDMATTERS_CONFIG", cfgPath)
	t.Setenv("MINDMATTERS_DATA_DIR", dir)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEntryAddAndList(t *testing.T) {
	setupCLI(t, nil)

	out, err := run(t, "entry", "add", "--mood", "8", "--no-weather",
		"--thoughts", "walked by the river", "-a", "Walk", "-a", "walk")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved entry 1: 8 (good)")
	assert.Contains(t, out, "Worker not running")

	out, err = run(t, "entry", "list", "--format", "json")
	require.NoError(t, err)
	var entries []entryJSON
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].Mood)
	assert.Equal(t, "walked by the river", entries[0].Thoughts)
	assert.False(t, entries[0].Synced)
	assert.NotEmpty(t, entries[0].UUID)

	out, err = run(t, "entry", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "walked by the river")
}

func TestEntryAddRequiresMood(t *testing.T) {
	setupCLI(t, nil)
	_, err := run(t, "entry", "add", "--no-weather")
	assert.Error(t, err)

	_, err = run(t, "entry", "add", "--mood", "11", "--no-weather", "--no-sync")
	assert.Error(t, err)
}

func TestEntryAddRequestsSync(t *testing.T) {
	worker := &fakeWorker{}
	setupCLI(t, worker)

	out, err := run(t, "entry", "add", "--mood", "3", "--no-weather")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync requested.")

	msgs := worker.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, messaging.TypeSyncNow, msgs[0].Type)
}

func TestListInvalidFormat(t *testing.T) {
	setupCLI(t, nil)
	_, err := run(t, "entry", "list", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestReminderFlow(t *testing.T) {
	worker := &fakeWorker{}
	setupCLI(t, worker)

	_, err := run(t, "reminder", "set", "20:00")
	require.ErrorContains(t, err, "notifications allow")

	out, err := run(t, "notifications", "allow")
	require.NoError(t, err)
	assert.Contains(t, out, "granted")

	out, err = run(t, "reminder", "set", "20:00")
	require.NoError(t, err)
	assert.Contains(t, out, "Daily reminder set for 20:00")

	msgs := worker.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, messaging.TypeScheduleNotification, msgs[0].Type)
	assert.Equal(t, "/journal", msgs[0].URL)

	out, err = run(t, "reminder", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "on at 20:00")

	_, err = run(t, "reminder", "cancel")
	require.NoError(t, err)
	out, err = run(t, "reminder", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "off at 20:00")
}

func TestReminderSavedWhenWorkerDown(t *testing.T) {
	setupCLI(t, nil)
	_, err := run(t, "notifications", "allow")
	require.NoError(t, err)

	out, err := run(t, "reminder", "set", "07:30")
	require.NoError(t, err)
	assert.Contains(t, out, "could not be reached")

	out, err = run(t, "reminder", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "on at 07:30")
}

func TestResetRequiresConfirmation(t *testing.T) {
	setupCLI(t, nil)
	_, err := run(t, "entry", "add", "--mood", "5", "--no-weather", "--no-sync")
	require.NoError(t, err)

	_, err = run(t, "reset")
	assert.ErrorContains(t, err, "--yes")

	_, err = run(t, "reset", "--yes")
	require.NoError(t, err)
	out, err := run(t, "entry", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries yet.")
}

func TestStatsEmpty(t *testing.T) {
	setupCLI(t, nil)
	out, err := run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 0")
}
