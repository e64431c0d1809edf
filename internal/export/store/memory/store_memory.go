package memory

import (
	"context"
	"slices"
	"sync"

	"vigil/internal/export"
	"vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// InMemoryStore keeps export requests in a map guarded by a RWMutex.
// Callers always receive copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[domain.ExportID]*export.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[domain.ExportID]*export.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *export.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ExportID) (*export.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// List returns matching requests newest first.
func (s *InMemoryStore) List(_ context.Context, statuses ...export.Status) ([]*export.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*export.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if len(statuses) > 0 && !slices.Contains(statuses, r.Status) {
			continue
		}
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *export.Request) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CompareAndSwap(_ context.Context, expected export.Status, updated *export.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[updated.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrConflict
	}
	s.requests[updated.ID] = updated.Clone()
	return nil
}
