// ABOUTME: Thread-safe TTL ledger of entries delivered to the remote but not yet marked synced
// ABOUTME: Lets a retry re-mark an entry instead of posting it a second time

package syncq

import (
	"container/list"
	"sync"
	"time"
)

// ledgerEntry stores the delivery time and list element for an entry UUID.
type ledgerEntry struct {
	delivered time.Time
	element   *list.Element
}

// Ledger remembers entry UUIDs whose delivery succeeded while the local
// MarkSynced failed. It is TTL-based and size-limited; the oldest record is
// evicted first. Uses a doubly-linked list to keep insertion order for O(1)
// eviction.
type Ledger struct {
	mu      sync.Mutex
	seen    map[string]*ledgerEntry
	order   *list.List // UUIDs in delivery order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// NewLedger creates a ledger with the specified TTL and maximum size.
// A background goroutine periodically drops expired records.
func NewLedger(ttl time.Duration, maxSize int) *Ledger {
	l := &Ledger{
		seen:    make(map[string]*ledgerEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Delivered reports whether uuid was delivered within the TTL.
func (l *Ledger) Delivered(uuid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.seen[uuid]
	if !ok {
		return false
	}
	return l.now().Sub(entry.delivered) < l.ttl
}

// Remember records that uuid reached the remote. If the ledger is at
// capacity, the oldest record is evicted to make room.
func (l *Ledger) Remember(uuid string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if entry, exists := l.seen[uuid]; exists {
		entry.delivered = now
		l.order.MoveToBack(entry.element)
		return
	}

	if len(l.seen) >= l.maxSize {
		l.evictOldest()
	}

	elem := l.order.PushBack(uuid)
	l.seen[uuid] = &ledgerEntry{
		delivered: now,
		element:   elem,
	}
}

// Forget drops the record for uuid once it has been marked synced.
func (l *Ledger) Forget(uuid string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.seen[uuid]; ok {
		l.order.Remove(entry.element)
		delete(l.seen, uuid)
	}
}

// Len returns the number of records, expired or not.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// evictOldest removes the oldest record. Must be called with mu held.
func (l *Ledger) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}

	uuid, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.seen, uuid)
}

// cleanup runs in a background goroutine, periodically removing expired records.
func (l *Ledger) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.expire()
		case <-l.done:
			return
		}
	}
}

// expire removes all expired records.
func (l *Ledger) expire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for uuid, entry := range l.seen {
		if now.Sub(entry.delivered) >= l.ttl {
			l.order.Remove(entry.element)
			delete(l.seen, uuid)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
