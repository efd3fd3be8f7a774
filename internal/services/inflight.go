package services

import (
	"sync"
	"time"
)

// InflightCache remembers sessions a recent verification found still open,
// so tight polling loops can skip redundant provider round-trips. It is a
// pure optimization: correctness never depends on a hit, and entries expire
// after a short TTL.
type InflightCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewInflightCache builds a cache with the given entry lifetime. A
// non-positive ttl disables caching entirely.
func NewInflightCache(ttl time.Duration) *InflightCache {
	return &InflightCache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkOpen records that sessionID was just observed unsettled.
func (c *InflightCache) MarkOpen(sessionID string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[sessionID] = c.now().Add(c.ttl)
	c.mu.Unlock()
}

// RecentlyOpen reports whether sessionID was observed unsettled within the
// TTL. Expired entries are removed on read.
func (c *InflightCache) RecentlyOpen(sessionID string) bool {
	if c == nil || c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.entries[sessionID]
	if !ok {
		return false
	}
	if c.now().After(deadline) {
		delete(c.entries, sessionID)
		return false
	}
	return true
}

// Forget drops sessionID, used once a session reaches a terminal state.
func (c *InflightCache) Forget(sessionID string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}

// Len reports the live entry count, sweeping expired entries first.
func (c *InflightCache) Len() int {
	if c == nil || c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, deadline := range c.entries {
		if now.After(deadline) {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}
