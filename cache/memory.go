// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a stored blob with an optional expiration time.
type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-memory Cache. The zero TTL form never expires entries,
// which fits content-addressed blobs; the TTL form runs a janitor goroutine
// that sweeps expired entries until Close.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	janitor *janitor
	closed  bool
	counters
}

// NewMemory creates an unbounded in-memory cache without expiration.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

// NewMemoryTTL creates an in-memory cache whose entries expire after ttl.
// cleanup determines how often expired entries are swept; <= 0 disables the
// janitor and leaves expiry checks to Get.
func NewMemoryTTL(ttl, cleanup time.Duration) *Memory {
	c := &Memory{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
	if cleanup > 0 {
		c.janitor = &janitor{
			interval: cleanup,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *Memory) Get(_ context.Context, id string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	e, found := c.entries[id]
	if !found || e.expired(time.Now()) {
		c.miss()
		return nil, false, nil
	}
	c.hit()
	return e.data, true, nil
}

func (c *Memory) Put(_ context.Context, id string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	e := &entry{data: make([]byte, len(data))}
	copy(e.data, data)
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.entries[id] = e
	c.put()
	return nil
}

func (c *Memory) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, found := c.entries[id]; found {
		delete(c.entries, id)
		c.delete()
	}
	return nil
}

func (c *Memory) Has(_ context.Context, id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false, ErrClosed
	}
	e, found := c.entries[id]
	return found && !e.expired(time.Now()), nil
}

func (c *Memory) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return c.snapshot(size)
}

// Close stops the janitor and rejects further operations.
func (c *Memory) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.janitor != nil {
		close(c.janitor.stop)
	}
	return nil
}

// deleteExpired removes all expired entries and returns how many went.
func (c *Memory) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	count := 0
	for id, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, id)
			count++
		}
	}
	return count
}

// janitor sweeps expired entries on an interval.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *Memory) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

var _ Cache = (*Memory)(nil)
