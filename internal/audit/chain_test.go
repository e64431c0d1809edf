package audit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"vigil/internal/audit"
	"vigil/internal/audit/metrics"
	"vigil/internal/audit/store/memory"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/sentinel"
)

type ChainSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.InMemoryStore
	chain *audit.Chain
}

func TestChainSuite(t *testing.T) {
	suite.Run(t, new(ChainSuite))
}

func (s *ChainSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewInMemoryStore()
	chain, err := audit.New(s.store, audit.WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())))
	s.Require().NoError(err)
	s.chain = chain
}

func scanFields(i int) audit.Fields {
	return audit.Fields{
		EventType:    audit.EventPHIScan,
		Action:       audit.ActionScanCompleted,
		UserID:       "researcher-1",
		ResourceType: "scan",
		ResourceID:   fmt.Sprintf("scan-%d", i),
		Details:      audit.Details{"risk_level": "none"},
	}
}

func (s *ChainSuite) appendN(n int) []*audit.Entry {
	out := make([]*audit.Entry, 0, n)
	for i := range n {
		e, err := s.chain.Append(s.ctx, scanFields(i))
		s.Require().NoError(err)
		out = append(out, e)
	}
	return out
}

func (s *ChainSuite) TestNew() {
	s.Run("nil store rejected", func() {
		_, err := audit.New(nil)
		s.Error(err)
	})
}

func (s *ChainSuite) TestAppend() {
	s.Run("first entry links to genesis", func() {
		e, err := s.chain.Append(s.ctx, scanFields(0))
		s.Require().NoError(err)
		s.Equal(audit.GenesisHash, e.PreviousHash)
		s.Equal(audit.ComputeHash(*e), e.EntryHash)
	})

	s.Run("subsequent entries link to their predecessor", func() {
		s.SetupTest()
		entries := s.appendN(3)
		s.Equal(entries[0].EntryHash, entries[1].PreviousHash)
		s.Equal(entries[1].EntryHash, entries[2].PreviousHash)
	})

	s.Run("caller details are copied", func() {
		s.SetupTest()
		f := scanFields(0)
		e, err := s.chain.Append(s.ctx, f)
		s.Require().NoError(err)
		f.Details["risk_level"] = "high"
		s.Equal("none", e.Details["risk_level"])
	})

	s.Run("invalid fields rejected without writing", func() {
		s.SetupTest()
		cases := map[string]audit.Fields{
			"unknown event type": {EventType: "NOPE", Action: "X", UserID: "u"},
			"missing action":     {EventType: audit.EventGovernance, UserID: "u"},
			"missing user":       {EventType: audit.EventGovernance, Action: "X"},
		}
		for name, f := range cases {
			_, err := s.chain.Append(s.ctx, f)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
		entries, err := s.chain.Entries(s.ctx, 0)
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("auth events may omit user", func() {
		s.SetupTest()
		_, err := s.chain.Append(s.ctx, audit.Fields{EventType: audit.EventAuth, Action: "LOGIN_FAILED"})
		s.NoError(err)
	})

	s.Run("timestamps never regress when the clock goes backwards", func() {
		store := memory.NewInMemoryStore()
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		chain, err := audit.New(store, audit.WithClock(clock))
		s.Require().NoError(err)

		first, err := chain.Append(s.ctx, scanFields(0))
		s.Require().NoError(err)
		now = now.Add(-time.Minute)
		second, err := chain.Append(s.ctx, scanFields(1))
		s.Require().NoError(err)
		s.False(second.CreatedAt.Before(first.CreatedAt))

		report, err := chain.Verify(s.ctx)
		s.Require().NoError(err)
		s.True(report.Valid)
	})

	s.Run("committed entries are forwarded to the outbox", func() {
		outbox := make(chan audit.Entry, 1)
		chain, err := audit.New(memory.NewInMemoryStore(), audit.WithOutbox(outbox))
		s.Require().NoError(err)

		e, err := chain.Append(s.ctx, scanFields(0))
		s.Require().NoError(err)
		s.Equal(e.ID, (<-outbox).ID)

		// full outbox does not block appends
		_, err = chain.Append(s.ctx, scanFields(1))
		s.Require().NoError(err)
		_, err = chain.Append(s.ctx, scanFields(2))
		s.Require().NoError(err)
	})
}

type conflictStore struct {
	*memory.InMemoryStore
}

func (conflictStore) AppendIfTail(context.Context, audit.Entry, string) error {
	return sentinel.ErrConflict
}

type failingStore struct {
	*memory.InMemoryStore
}

func (failingStore) AppendIfTail(context.Context, audit.Entry, string) error {
	return errors.New("disk full")
}

func (s *ChainSuite) TestAppendStoreErrors() {
	s.Run("lost tail race surfaces as conflict", func() {
		chain, err := audit.New(conflictStore{memory.NewInMemoryStore()})
		s.Require().NoError(err)
		_, err = chain.Append(s.ctx, scanFields(0))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("write failure surfaces as internal", func() {
		chain, err := audit.New(failingStore{memory.NewInMemoryStore()})
		s.Require().NoError(err)
		_, err = chain.Append(s.ctx, scanFields(0))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ChainSuite) TestConcurrentAppends() {
	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.chain.Append(s.ctx, scanFields(i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	entries, err := s.chain.Entries(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(entries, writers)

	seen := make(map[string]bool, writers)
	for _, e := range entries {
		s.False(seen[e.PreviousHash], "two entries share predecessor %s", e.PreviousHash)
		seen[e.PreviousHash] = true
	}

	report, err := s.chain.Verify(s.ctx)
	s.Require().NoError(err)
	s.True(report.Valid)
	s.Equal(writers, report.EntriesValidated)
}

func (s *ChainSuite) TestVerify() {
	s.Run("empty chain is valid", func() {
		report, err := s.chain.Verify(s.ctx)
		s.Require().NoError(err)
		s.True(report.Valid)
		s.Zero(report.EntriesValidated)
	})

	s.Run("tampered storage reports chain integrity violation", func() {
		s.SetupTest()
		entries := s.appendN(5)
		s.store.Mutate(2, func(e *audit.Entry) { e.Details["risk_level"] = "high" })

		report, err := s.chain.Verify(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeChainIntegrity))
		s.False(report.Valid)
		s.Equal(entries[2].ID, *report.BrokenAt)
		s.Equal(audit.ReasonContentMismatch, report.Reason)
	})

	s.Run("deleted entry reports the entry after the gap", func() {
		s.SetupTest()
		entries := s.appendN(5)
		s.store.Remove(1)

		report, err := s.chain.Verify(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeChainIntegrity))
		s.Equal(entries[2].ID, *report.BrokenAt)
	})
}

func (s *ChainSuite) TestEntries() {
	s.appendN(5)

	s.Run("limit returns newest in append order", func() {
		entries, err := s.chain.Entries(s.ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal("scan-3", entries[0].ResourceID)
		s.Equal("scan-4", entries[1].ResourceID)
	})

	s.Run("non-positive limit returns everything", func() {
		entries, err := s.chain.Entries(s.ctx, 0)
		s.Require().NoError(err)
		s.Len(entries, 5)
	})
}
