// ABOUTME: One-shot in-process timers for scheduled notifications, one per tag
// ABOUTME: Timers die with the process; the periodic daily check covers restarts

package notify

import (
	"slices"
	"sync"
	"time"
)

// Timers holds pending one-shot notifications keyed by tag.
type Timers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(Notification)
	now    func() time.Time
}

// NewTimers creates Timers that call fire when a timer elapses.
func NewTimers(fire func(Notification)) *Timers {
	return &Timers{
		timers: make(map[string]*time.Timer),
		fire:   fire,
		now:    time.Now,
	}
}

// Schedule arranges for n to fire at at. Scheduling a tag that is already
// pending replaces its timer. A time in the past fires immediately.
func (t *Timers) Schedule(at time.Time, n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[n.Tag]; ok {
		old.Stop()
	}

	delay := max(at.Sub(t.now()), 0)

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		current, ok := t.timers[n.Tag]
		if !ok || current != timer {
			// Replaced or cancelled after it started firing
			t.mu.Unlock()
			return
		}
		delete(t.timers, n.Tag)
		t.mu.Unlock()

		t.fire(n)
	})
	t.timers[n.Tag] = timer
}

// Cancel drops the pending timer for tag and reports whether one existed.
func (t *Timers) Cancel(tag string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[tag]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, tag)
	return true
}

// CancelAll drops every pending timer and returns how many there were.
func (t *Timers) CancelAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.timers)
	for tag, timer := range t.timers {
		timer.Stop()
		delete(t.timers, tag)
	}
	return n
}

// Pending returns the tags with a pending timer, sorted.
func (t *Timers) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	tags := make([]string, 0, len(t.timers))
	for tag := range t.timers {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
