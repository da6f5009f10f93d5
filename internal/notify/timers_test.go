package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers fired notifications.
type collector struct {
	mu    sync.Mutex
	fired []Notification
	ch    chan Notification
}

func newCollector() *collector {
	return &collector{ch: make(chan Notification, 10)}
}

func (c *collector) fire(n Notification) {
	c.mu.Lock()
	c.fired = append(c.fired, n)
	c.mu.Unlock()
	c.ch <- n
}

func (c *collector) wait(t *testing.T) Notification {
	t.Helper()
	select {
	case n := <-c.ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

func TestTimers_PastTimestampFiresImmediately(t *testing.T) {
	c := newCollector()
	timers := NewTimers(c.fire)

	timers.Schedule(time.Now().Add(-time.Hour), Notification{Tag: "late", Title: "overdue"})

	n := c.wait(t)
	assert.Equal(t, "overdue", n.Title)
	assert.Empty(t, timers.Pending())
}

func TestTimers_FiresAfterDelay(t *testing.T) {
	c := newCollector()
	timers := NewTimers(c.fire)

	timers.Schedule(time.Now().Add(20*time.Millisecond), Notification{Tag: "soon"})
	assert.Equal(t, []string{"soon"}, timers.Pending())

	n := c.wait(t)
	assert.Equal(t, "soon", n.Tag)
}

func TestTimers_RescheduleReplaces(t *testing.T) {
	c := newCollector()
	timers := NewTimers(c.fire)

	timers.Schedule(time.Now().Add(time.Hour), Notification{Tag: DailyReminderTag, Title: "old"})
	timers.Schedule(time.Now().Add(10*time.Millisecond), Notification{Tag: DailyReminderTag, Title: "new"})
	assert.Equal(t, []string{DailyReminderTag}, timers.Pending())

	n := c.wait(t)
	assert.Equal(t, "new", n.Title)

	// The replaced timer never fires
	select {
	case extra := <-c.ch:
		t.Fatalf("unexpected extra notification %q", extra.Title)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimers_Cancel(t *testing.T) {
	c := newCollector()
	timers := NewTimers(c.fire)

	timers.Schedule(time.Now().Add(30*time.Millisecond), Notification{Tag: "x"})
	require.True(t, timers.Cancel("x"))
	assert.False(t, timers.Cancel("x"))

	select {
	case <-c.ch:
		t.Fatal("cancelled timer fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestTimers_CancelAll(t *testing.T) {
	timers := NewTimers(func(Notification) {})

	timers.Schedule(time.Now().Add(time.Hour), Notification{Tag: "a"})
	timers.Schedule(time.Now().Add(time.Hour), Notification{Tag: "b"})

	assert.Equal(t, []string{"a", "b"}, timers.Pending())
	assert.Equal(t, 2, timers.CancelAll())
	assert.Empty(t, timers.Pending())
	assert.Equal(t, 0, timers.CancelAll())
}
