package session

import (
	"context"
	"sync"
	"time"
)

// RevocationList stores, per role and subject, the time of the latest
// revocation: tokens sealed at or before it are rejected.
type RevocationList interface {
	// Revoke records revokedAt (Unix seconds) unless a later one is stored.
	// Entries may be dropped after ttl, by which point every affected token
	// has expired on its own.
	Revoke(ctx context.Context, role, subject string, revokedAt int64, ttl time.Duration) error
	RevokedAt(ctx context.Context, role, subject string) (int64, bool, error)
}

func revocationKey(role, subject string) string {
	return role + ":" + subject
}

type revocationEntry struct {
	revokedAt int64
	expiresAt time.Time
}

// InMemoryRevocationList is a single-process RevocationList.
type InMemoryRevocationList struct {
	mu      sync.RWMutex
	entries map[string]revocationEntry
	now     func() time.Time
}

func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		entries: make(map[string]revocationEntry),
		now:     time.Now,
	}
}

func (l *InMemoryRevocationList) Revoke(_ context.Context, role, subject string, revokedAt int64, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, e := range l.entries {
		if !now.Before(e.expiresAt) {
			delete(l.entries, k)
		}
	}
	key := revocationKey(role, subject)
	entry := revocationEntry{revokedAt: revokedAt, expiresAt: now.Add(ttl)}
	if existing, ok := l.entries[key]; ok {
		entry.revokedAt = max(entry.revokedAt, existing.revokedAt)
		if existing.expiresAt.After(entry.expiresAt) {
			entry.expiresAt = existing.expiresAt
		}
	}
	l.entries[key] = entry
	return nil
}

func (l *InMemoryRevocationList) RevokedAt(_ context.Context, role, subject string) (int64, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[revocationKey(role, subject)]
	if !ok || !l.now().Before(e.expiresAt) {
		return 0, false, nil
	}
	return e.revokedAt, true, nil
}
