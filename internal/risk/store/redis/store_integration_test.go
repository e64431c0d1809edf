//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/risk"
	riskredis "vigil/internal/risk/store/redis"
	"vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *riskredis.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = riskredis.New(s.redis.Client.Client, 0)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestScanRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	in := &risk.ScanResult{
		ScanID:           domain.NewScanID(),
		Context:          risk.ContextExport,
		ContentLength:    24,
		RiskLevel:        risk.LevelHigh,
		RequiresOverride: true,
		Detected: []risk.Detection{{
			DetectionID: "content:ssn:13:24",
			Section:     "content",
			Category:    risk.CategorySSN,
			Pattern:     "ssn_dashed",
			StartIndex:  13,
			EndIndex:    24,
			Severity:    risk.SeverityCritical,
		}},
		Summary:   map[risk.Category]int{risk.CategorySSN: 1},
		ScannedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s.Require().NoError(s.store.SaveScan(ctx, in))

	got, err := s.store.FindScan(ctx, in.ScanID)
	s.Require().NoError(err)
	s.Equal(in.ScanID, got.ScanID)
	s.Equal(in.Detected, got.Detected)
	s.Equal(in.Summary, got.Summary)
	s.True(in.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := s.redis.Client.TTL(ctx, "vigil:scan:"+in.ScanID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 55*time.Minute)
	s.LessOrEqual(ttl, time.Hour)
}

func (s *RedisStoreSuite) TestFlushLeavesForeignKeys() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "other:key", "1", time.Minute).Err())
	s.Require().NoError(s.store.SaveScan(ctx, &risk.ScanResult{
		ScanID:    domain.NewScanID(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	s.Require().NoError(s.redis.FlushAll(ctx))

	keys, err := s.redis.Client.Keys(ctx, "*").Result()
	s.Require().NoError(err)
	s.Equal([]string{"other:key"}, keys)
	s.Require().NoError(s.redis.Client.Del(ctx, "other:key").Err())
}

func (s *RedisStoreSuite) TestMissingKeysAreNotFound() {
	ctx := context.Background()
	_, err := s.store.FindScan(ctx, domain.NewScanID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindOverride(ctx, domain.NewOverrideID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestOverrideExpiresWithKey() {
	ctx := context.Background()
	o := &risk.Override{
		ID:         domain.NewOverrideID(),
		ScanID:     domain.NewScanID(),
		ApprovedBy: "steward-1",
		Conditions: []string{"access_logged"},
		GrantedAt:  time.Now().Add(-2 * time.Second),
		ExpiresAt:  time.Now().Add(time.Second),
	}
	s.Require().NoError(s.store.SaveOverride(ctx, o))

	got, err := s.store.FindOverride(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(o.Conditions, got.Conditions)

	s.Eventually(func() bool {
		_, err := s.store.FindOverride(ctx, o.ID)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}
