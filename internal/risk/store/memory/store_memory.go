package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"vigil/internal/risk"
	"vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

const (
	// DefaultRetention is how long a record stays readable past its ExpiresAt,
	// so callers can tell an expired grant from one that never existed.
	DefaultRetention = time.Hour
	// DefaultSweepInterval bounds how often a save also purges dead records.
	DefaultSweepInterval = time.Minute
)

// InMemoryStore keeps scans and overrides in maps guarded by a mutex.
// Records past ExpiresAt plus the retention window are dropped on read, and
// saves sweep all dead records at most once per sweep interval, so memory is
// bounded by what was written within TTL + retention + sweep interval.
type InMemoryStore struct {
	mu            sync.Mutex
	scans         map[domain.ScanID]risk.ScanResult
	overrides     map[domain.OverrideID]risk.Override
	retention     time.Duration
	sweepInterval time.Duration
	nextSweep     time.Time
	now           func() time.Time
}

type Option func(*InMemoryStore)

func WithRetention(d time.Duration) Option {
	return func(s *InMemoryStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *InMemoryStore) {
		if d >= 0 {
			s.sweepInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		scans:         make(map[domain.ScanID]risk.ScanResult),
		overrides:     make(map[domain.OverrideID]risk.Override),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) SaveScan(_ context.Context, result *risk.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.scans[result.ScanID] = cloneScan(*result)
	return nil
}

func (s *InMemoryStore) FindScan(_ context.Context, id domain.ScanID) (*risk.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.scans[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if s.gone(r.ExpiresAt) {
		delete(s.scans, id)
		return nil, sentinel.ErrNotFound
	}
	out := cloneScan(r)
	return &out, nil
}

func (s *InMemoryStore) SaveOverride(_ context.Context, o *risk.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	cp := *o
	cp.Conditions = append([]string(nil), o.Conditions...)
	s.overrides[o.ID] = cp
	return nil
}

func (s *InMemoryStore) FindOverride(_ context.Context, id domain.OverrideID) (*risk.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if s.gone(o.ExpiresAt) {
		delete(s.overrides, id)
		return nil, sentinel.ErrNotFound
	}
	o.Conditions = append([]string(nil), o.Conditions...)
	return &o, nil
}

func (s *InMemoryStore) sweepLocked() {
	now := s.now()
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(s.sweepInterval)
	maps.DeleteFunc(s.scans, func(_ domain.ScanID, r risk.ScanResult) bool {
		return s.gone(r.ExpiresAt)
	})
	maps.DeleteFunc(s.overrides, func(_ domain.OverrideID, o risk.Override) bool {
		return s.gone(o.ExpiresAt)
	})
}

func (s *InMemoryStore) gone(expiresAt time.Time) bool {
	return s.now().After(expiresAt.Add(s.retention))
}

func cloneScan(r risk.ScanResult) risk.ScanResult {
	r.Detected = append([]risk.Detection(nil), r.Detected...)
	r.Summary = maps.Clone(r.Summary)
	return r
}
