// ABOUTME: Tests for the delivery ledger used to avoid re-posting delivered entries.
// ABOUTME: Validates TTL expiration, size limits, eviction order, and concurrency safety.

package syncq

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced clock for ledger tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLedger(ttl time.Duration, size int) (*Ledger, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLedger(ttl, size)
	l.now = clock.Now
	return l, clock
}

func TestLedger_NotDelivered(t *testing.T) {
	ledger, _ := newTestLedger(5*time.Minute, 100)
	defer ledger.Close()

	assert.False(t, ledger.Delivered("never-delivered"))
}

func TestLedger_Remember(t *testing.T) {
	ledger, _ := newTestLedger(5*time.Minute, 100)
	defer ledger.Close()

	ledger.Remember("uuid-1")
	ledger.Remember("uuid-2")

	assert.True(t, ledger.Delivered("uuid-1"))
	assert.True(t, ledger.Delivered("uuid-2"))
	assert.False(t, ledger.Delivered("uuid-3"))
}

func TestLedger_Expired(t *testing.T) {
	ledger, clock := newTestLedger(time.Minute, 100)
	defer ledger.Close()

	ledger.Remember("expiring")
	assert.True(t, ledger.Delivered("expiring"))

	clock.Advance(time.Minute)
	assert.False(t, ledger.Delivered("expiring"))
}

func TestLedger_Remember_RefreshesTimestamp(t *testing.T) {
	ledger, clock := newTestLedger(time.Minute, 100)
	defer ledger.Close()

	ledger.Remember("refresh")
	clock.Advance(40 * time.Second)
	ledger.Remember("refresh")
	clock.Advance(40 * time.Second)

	// Still present because the second delivery refreshed it
	assert.True(t, ledger.Delivered("refresh"))
}

func TestLedger_Forget(t *testing.T) {
	ledger, _ := newTestLedger(time.Minute, 100)
	defer ledger.Close()

	ledger.Remember("uuid-1")
	ledger.Forget("uuid-1")
	ledger.Forget("never-there")

	assert.False(t, ledger.Delivered("uuid-1"))
	assert.Equal(t, 0, ledger.Len())
}

func TestLedger_EvictionOrder(t *testing.T) {
	ledger, clock := newTestLedger(5*time.Minute, 3)
	defer ledger.Close()

	ledger.Remember("uuid-1")
	clock.Advance(time.Millisecond)
	ledger.Remember("uuid-2")
	clock.Advance(time.Millisecond)
	ledger.Remember("uuid-3")

	// Re-delivering uuid-1 moves it to the back
	ledger.Remember("uuid-1")
	ledger.Remember("uuid-4")

	assert.False(t, ledger.Delivered("uuid-2"), "oldest record should be evicted")
	assert.True(t, ledger.Delivered("uuid-1"))
	assert.True(t, ledger.Delivered("uuid-3"))
	assert.True(t, ledger.Delivered("uuid-4"))
}

func TestLedger_Expire(t *testing.T) {
	ledger, clock := newTestLedger(time.Minute, 100)
	defer ledger.Close()

	ledger.Remember("old")
	clock.Advance(2 * time.Minute)
	ledger.Remember("fresh")

	ledger.expire()

	assert.Equal(t, 1, ledger.Len())
	assert.True(t, ledger.Delivered("fresh"))
}

func TestLedger_Concurrent(t *testing.T) {
	ledger := NewLedger(5*time.Minute, 1000)
	defer ledger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("w%d-%d", worker, j)
				ledger.Remember(key)
				ledger.Delivered(key)
				if j%2 == 0 {
					ledger.Forget(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, ledger.Len())
}

func TestLedger_Close(t *testing.T) {
	ledger := NewLedger(time.Minute, 10)
	ledger.Close()
	// Safe to call twice
	ledger.Close()
}
