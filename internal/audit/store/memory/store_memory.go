package memory

import (
	"context"
	"maps"
	"sync"

	"vigil/internal/audit"
	"vigil/pkg/platform/sentinel"
)

// InMemoryStore keeps the chain in a slice guarded by a RWMutex. Entries are
// copied in and out, Details included, so callers never share stored maps.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Tail(_ context.Context) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	tail := cloneEntry(s.entries[len(s.entries)-1])
	return &tail, nil
}

func (s *InMemoryStore) AppendIfTail(_ context.Context, entry audit.Entry, expectedTail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := audit.GenesisHash
	if n := len(s.entries); n > 0 {
		current = s.entries[n-1].EntryHash
	}
	if current != expectedTail {
		return sentinel.ErrConflict
	}
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.entries)-limit, 0)
	return cloneEntries(s.entries[start:]), nil
}

// Mutate rewrites the stored entry at index i in place. It exists so
// integrity tests can simulate tampering with the underlying storage.
func (s *InMemoryStore) Mutate(i int, fn func(*audit.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.entries[i])
}

// Remove deletes the entry at index i, leaving a gap in the chain.
func (s *InMemoryStore) Remove(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
}

func cloneEntry(e audit.Entry) audit.Entry {
	e.Details = maps.Clone(e.Details)
	return e
}

func cloneEntries(entries []audit.Entry) []audit.Entry {
	out := make([]audit.Entry, len(entries))
	for i, e := range entries {
		out[i] = cloneEntry(e)
	}
	return out
}
