// ABOUTME: Thread-safe TTL cache keyed by gateway message IDs.
// ABOUTME: Suppresses redelivered events after gateway reconnects or resumes.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry carries the mark time and the key's position in the eviction order.
type entry struct {
	markedAt time.Time
	element  *list.Element
}

// Cache tracks recently seen event keys so a redelivered gateway event is
// processed at most once within the TTL window. It is bounded: when full,
// the oldest key is evicted in O(1) via an insertion-order list.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*entry
	order   *list.List // oldest key at the front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and capacity and starts a
// background sweeper for expired keys.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CheckAndMark atomically tests whether key was seen within the TTL and
// marks it if not. Returns true for a duplicate, false if the key is new
// and is now marked. The single lock avoids a check/mark race between
// concurrent event handlers.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[key]
	if ok && time.Since(e.markedAt) < c.ttl {
		return true
	}

	c.markLocked(key)
	return false
}

// Check reports whether key was seen within the TTL, without marking it.
func (c *Cache) Check(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.seen[key]
	return ok && time.Since(e.markedAt) < c.ttl
}

// Mark records key as seen, evicting the oldest key if at capacity.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) {
	now := time.Now()

	if e, exists := c.seen[key]; exists {
		e.markedAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{markedAt: now, element: elem}
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.seen {
		if now.Sub(e.markedAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
