//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/export"
	"vigil/internal/export/store/postgres"
	"vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "export_requests"))
}

func newRequest(phi bool, at time.Time) *export.Request {
	scan := domain.NewScanID()
	return export.NewRequest("researcher-1", domain.RoleResearcher, export.BundleManuscript,
		&scan, phi, at.UTC().Truncate(time.Microsecond))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	r := newRequest(true, time.Now())
	s.Require().NoError(s.store.Create(ctx, r))
	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrConflict)

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r, got)

	_, err = s.store.FindByID(ctx, domain.NewExportID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCompareAndSwapPersistsOverride() {
	ctx := context.Background()
	r := newRequest(true, time.Now())
	s.Require().NoError(s.store.Create(ctx, r))

	next := r.Resolved(export.DecisionApprove, "steward-1", "IRB-2024-001 approved release",
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(s.store.CompareAndSwap(ctx, export.StatusPHIBlocked, next))

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(next, got)
	s.Require().NotNil(got.PHIOverride)
	s.Equal("IRB-2024-001 approved release", got.PHIOverride.Justification)

	s.ErrorIs(s.store.CompareAndSwap(ctx, export.StatusPHIBlocked, next), sentinel.ErrConflict)

	missing := newRequest(false, time.Now())
	s.ErrorIs(s.store.CompareAndSwap(ctx, export.StatusPending, missing), sentinel.ErrNotFound)

	reverted := r.Clone()
	s.Require().NoError(s.store.CompareAndSwap(ctx, export.StatusApproved, reverted))
	got, err = s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(export.StatusPHIBlocked, got.Status)
	s.Nil(got.PHIOverride)
	s.Nil(got.ResolvedAt)
}

func (s *PostgresStoreSuite) TestListFiltersByStatus() {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	pending := newRequest(false, base)
	blocked := newRequest(true, base.Add(time.Minute))
	s.Require().NoError(s.store.Create(ctx, pending))
	s.Require().NoError(s.store.Create(ctx, blocked))

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(blocked.ID, all[0].ID)

	onlyPending, err := s.store.List(ctx, export.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(onlyPending, 1)
	s.Equal(pending.ID, onlyPending[0].ID)

	both, err := s.store.List(ctx, export.StatusPending, export.StatusPHIBlocked)
	s.Require().NoError(err)
	s.Len(both, 2)
}

func (s *PostgresStoreSuite) TestConcurrentSwapsHaveOneWinner() {
	ctx := context.Background()
	r := newRequest(false, time.Now())
	s.Require().NoError(s.store.Create(ctx, r))

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := r.Resolved(export.DecisionDeny, "steward-1", "", time.Now().UTC())
			switch err := s.store.CompareAndSwap(ctx, export.StatusPending, next); err {
			case nil:
				wins.Add(1)
			case sentinel.ErrConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(9), conflicts.Load())
}
