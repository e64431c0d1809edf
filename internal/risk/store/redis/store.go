// Package redis stores scan results and override grants as JSON values whose
// key expiry tracks the record's own ExpiresAt.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/risk"
	"vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

const (
	scanKeyPrefix     = "vigil:scan:"
	overrideKeyPrefix = "vigil:override:"

	// DefaultRetention keeps a key readable this long past ExpiresAt.
	DefaultRetention = time.Hour
)

type Store struct {
	client    redis.UniversalClient
	retention time.Duration
}

func New(client redis.UniversalClient, retention time.Duration) *Store {
	if retention < 0 {
		retention = DefaultRetention
	}
	return &Store{client: client, retention: retention}
}

func (s *Store) SaveScan(ctx context.Context, result *risk.ScanResult) error {
	return s.put(ctx, scanKeyPrefix+result.ScanID.String(), result, result.ExpiresAt)
}

func (s *Store) FindScan(ctx context.Context, id domain.ScanID) (*risk.ScanResult, error) {
	var out risk.ScanResult
	if err := s.get(ctx, scanKeyPrefix+id.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) SaveOverride(ctx context.Context, o *risk.Override) error {
	return s.put(ctx, overrideKeyPrefix+o.ID.String(), o, o.ExpiresAt)
}

func (s *Store) FindOverride(ctx context.Context, id domain.OverrideID) (*risk.Override, error) {
	var out risk.Override
	if err := s.get(ctx, overrideKeyPrefix+id.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) put(ctx context.Context, key string, v any, expiresAt time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.client.SetArgs(ctx, key, data, redis.SetArgs{
		ExpireAt: expiresAt.Add(s.retention),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
