package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemory is a process-local Cache. It suits tests and single-replica
// deployments; replicas do not share credentials.
type InMemory struct {
	mu      sync.RWMutex
	entries map[Key]entry
	now     func() time.Time
}

type MemoryOption func(*InMemory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemory) {
		if now != nil {
			c.now = now
		}
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	c := &InMemory{
		entries: make(map[Key]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemory) Get(_ context.Context, key Key) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *InMemory) Set(_ context.Context, key Key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *InMemory) Delete(_ context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// TTL reports the remaining lifetime of key, or false when absent or expired.
func (c *InMemory) TTL(_ context.Context, key Key) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	remaining := e.expiresAt.Sub(c.now())
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Len returns the number of stored entries, including not yet evicted expired ones.
func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
