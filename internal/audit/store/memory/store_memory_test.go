package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vigil/internal/audit"
	"vigil/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func entry(prev, hash string) audit.Entry {
	return audit.Entry{Action: "X", PreviousHash: prev, EntryHash: hash}
}

func (s *InMemoryStoreSuite) TestTail() {
	s.Run("empty store has no tail", func() {
		_, err := s.store.Tail(s.ctx)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("tail is the last appended entry", func() {
		s.Require().NoError(s.store.AppendIfTail(s.ctx, entry(audit.GenesisHash, "h1"), audit.GenesisHash))
		s.Require().NoError(s.store.AppendIfTail(s.ctx, entry("h1", "h2"), "h1"))
		tail, err := s.store.Tail(s.ctx)
		s.Require().NoError(err)
		s.Equal("h2", tail.EntryHash)
	})
}

func (s *InMemoryStoreSuite) TestAppendIfTail() {
	s.Run("stale expected tail conflicts", func() {
		s.Require().NoError(s.store.AppendIfTail(s.ctx, entry(audit.GenesisHash, "h1"), audit.GenesisHash))
		err := s.store.AppendIfTail(s.ctx, entry(audit.GenesisHash, "h1b"), audit.GenesisHash)
		s.ErrorIs(err, sentinel.ErrConflict)

		all, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Len(all, 1)
	})
}

func (s *InMemoryStoreSuite) TestListReturnsCopies() {
	s.Require().NoError(s.store.AppendIfTail(s.ctx, entry(audit.GenesisHash, "h1"), audit.GenesisHash))
	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	all[0].EntryHash = "mutated"

	tail, err := s.store.Tail(s.ctx)
	s.Require().NoError(err)
	s.Equal("h1", tail.EntryHash)
}

func (s *InMemoryStoreSuite) TestDetailsAreNotShared() {
	in := entry(audit.GenesisHash, "h1")
	in.Details = audit.Details{"risk_level": "high"}
	s.Require().NoError(s.store.AppendIfTail(s.ctx, in, audit.GenesisHash))
	in.Details["risk_level"] = "none"

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	all[0].Details["risk_level"] = "low"

	recent, err := s.store.ListRecent(s.ctx, 1)
	s.Require().NoError(err)
	recent[0].Details["injected"] = "x"

	tail, err := s.store.Tail(s.ctx)
	s.Require().NoError(err)
	tail.Details["risk_level"] = "medium"

	again, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(audit.Details{"risk_level": "high"}, again[0].Details)
}

func (s *InMemoryStoreSuite) TestListRecent() {
	prev := audit.GenesisHash
	for _, h := range []string{"h1", "h2", "h3"} {
		s.Require().NoError(s.store.AppendIfTail(s.ctx, entry(prev, h), prev))
		prev = h
	}

	recent, err := s.store.ListRecent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("h2", recent[0].EntryHash)
	s.Equal("h3", recent[1].EntryHash)

	recent, err = s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(recent, 3)
}
