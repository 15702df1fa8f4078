// ABOUTME: Tests for the event dedupe cache.
// ABOUTME: Validates TTL expiration, capacity eviction, and CheckAndMark atomicity.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_CheckAndMark(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("bot-1:msg-100"), "first delivery is not a duplicate")
	assert.True(t, cache.CheckAndMark("bot-1:msg-100"), "redelivery is a duplicate")

	// Same message ID under a different bot is a distinct key.
	assert.False(t, cache.CheckAndMark("bot-2:msg-100"))
}

func TestCache_Expiry(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("bot-1:msg-1"))
	assert.True(t, cache.Check("bot-1:msg-1"))

	time.Sleep(20 * time.Millisecond)

	assert.False(t, cache.Check("bot-1:msg-1"), "expired key should read as unseen")
	assert.False(t, cache.CheckAndMark("bot-1:msg-1"), "expired key can be marked again")
}

func TestCache_Eviction(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("msg-1")
	cache.Mark("msg-2")
	cache.Mark("msg-3")
	cache.Mark("msg-4")

	assert.False(t, cache.Check("msg-1"), "oldest key should be evicted at capacity")
	assert.True(t, cache.Check("msg-2"))
	assert.True(t, cache.Check("msg-3"))
	assert.True(t, cache.Check("msg-4"))
}

func TestCache_MarkRefreshesOrder(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("msg-1")
	cache.Mark("msg-2")
	cache.Mark("msg-3")

	// Re-marking msg-1 moves it to the back, so msg-2 is now the oldest.
	cache.Mark("msg-1")
	cache.Mark("msg-4")

	assert.True(t, cache.Check("msg-1"))
	assert.False(t, cache.Check("msg-2"))
}

func TestCache_RemoveExpired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("msg-1")
	cache.Mark("msg-2")
	time.Sleep(20 * time.Millisecond)

	cache.removeExpired()

	cache.mu.RLock()
	defer cache.mu.RUnlock()
	assert.Equal(t, 0, len(cache.seen), "sweep should drop expired entries")
	assert.Equal(t, 0, cache.order.Len())
}

func TestCache_CheckAndMarkAtomic(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	const goroutines = 100
	var wins atomic.Int32
	var wg sync.WaitGroup

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("contested") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one caller should see the key as new")
}

func TestCache_Concurrent(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("bot-%d:msg-%d", i%5, j)
				cache.CheckAndMark(key)
				cache.Check(key)
			}
		}()
	}
	wg.Wait()

	cache.Mark("final")
	assert.True(t, cache.Check("final"))
}

func TestCache_Close(t *testing.T) {
	cache := New(5*time.Minute, 100)
	cache.Mark("msg-1")
	cache.Close()
	cache.Close() // no panic on double close
}
