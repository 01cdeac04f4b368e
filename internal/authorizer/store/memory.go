// Package store persists authorizer records.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"credgate/internal/authorizer/models"
	id "credgate/pkg/domain"
	"credgate/pkg/platform/sentinel"
)

// ErrNotFound is returned when no record exists for an appid.
var ErrNotFound = sentinel.ErrNotFound

// InMemory stores authorizers in memory. Records are copied on the way in
// and out so callers never share state with the store.
type InMemory struct {
	mu          sync.RWMutex
	authorizers map[id.AppID]*models.Authorizer
}

func NewInMemory() *InMemory {
	return &InMemory{authorizers: make(map[id.AppID]*models.Authorizer)}
}

// Create inserts a new record. An existing appid yields sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, a *models.Authorizer) error {
	if a == nil {
		return fmt.Errorf("authorizer is required")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.authorizers[a.AppID]; exists {
		return fmt.Errorf("authorizer appid must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.authorizers[a.AppID] = clone(a)
	return nil
}

func (s *InMemory) FindByAppID(_ context.Context, appID id.AppID) (*models.Authorizer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.authorizers[appID]; ok {
		return clone(a), nil
	}
	return nil, ErrNotFound
}

// Update applies changes to the stored record. Empty changes are not a write.
func (s *InMemory) Update(_ context.Context, appID id.AppID, changes models.Changes, now time.Time) error {
	if changes.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.authorizers[appID]
	if !ok {
		return ErrNotFound
	}
	next := clone(current)
	changes.Apply(next, now)
	if err := next.Validate(); err != nil {
		return err
	}
	s.authorizers[appID] = next
	return nil
}

// List returns all records ordered by appid.
func (s *InMemory) List(_ context.Context) ([]*models.Authorizer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Authorizer, 0, len(s.authorizers))
	for _, a := range s.authorizers {
		out = append(out, clone(a))
	}
	slices.SortFunc(out, func(a, b *models.Authorizer) int {
		return strings.Compare(string(a.AppID), string(b.AppID))
	})
	return out, nil
}

func clone(a *models.Authorizer) *models.Authorizer {
	c := *a
	c.FuncScopes = slices.Clone(a.FuncScopes)
	c.Profile = a.Profile.Clone()
	return &c
}
