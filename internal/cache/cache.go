// Package cache provides a small time-boxed key-value cache for facility
// reference data and display availability. Check-in evaluation must never
// read through it; admission decisions always use fresh records.
package cache

import (
	"sync"
	"time"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	value     any
	expiresAt time.Time
}

// TTL is a mutex-guarded map with per-entry expiry.
type TTL struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   Clock
}

// New creates a cache whose entries live for ttl. A nil clock uses real time.
func New(ttl time.Duration, clock Clock) *TTL {
	if clock == nil {
		clock = realClock{}
	}
	return &TTL{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached value for key if it is still fresh.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL.
func (c *TTL) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
}

// Invalidate drops a key, typically after a write that changes what the
// cached view would show.
func (c *TTL) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *TTL) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	dropped := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}
