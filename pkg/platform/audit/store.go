package audit

import (
	"context"
	"slices"
	"sync"
)

const defaultCapacity = 1000

// InMemoryStore keeps the most recent events in a bounded buffer.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &InMemoryStore{capacity: capacity}
}

// Emit appends event, dropping the oldest when full.
func (s *InMemoryStore) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == s.capacity {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, event)
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (s *InMemoryStore) Recent(_ context.Context, limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.events)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ListByAppID returns the events for one authorizer, oldest first.
func (s *InMemoryStore) ListByAppID(_ context.Context, appID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, ev := range s.events {
		if ev.AppID == appID {
			out = append(out, ev)
		}
	}
	return out
}
