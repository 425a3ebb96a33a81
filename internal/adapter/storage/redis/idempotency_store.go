package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"pmc-orchestrator/internal/core/domain"
)

// IdempotencyStore implements ports.IdempotencyRepository over Redis, for
// deployments where several workers share one record space. Records are
// JSON values with a native TTL; SET NX preserves first-writer-wins.
type IdempotencyStore struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewIdempotencyStore creates a Redis-backed idempotency record store.
func NewIdempotencyStore(client *goredis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "idempotency:",
	}
}

func (s *IdempotencyStore) key(scope, key string) string {
	return s.prefix + scope + ":" + key
}

// Get returns the record for (scope, key), or nil when absent or expired.
func (s *IdempotencyStore) Get(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, s.key(scope, key)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding idempotency record: %w", err)
	}
	return &rec, nil
}

// Put stores the record with the configured TTL. A concurrent duplicate is
// a silent no-op: the first writer's record stands.
func (s *IdempotencyStore) Put(ctx context.Context, rec *domain.IdempotencyRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding idempotency record: %w", err)
	}
	if err := s.client.SetNX(ctx, s.key(rec.Scope, rec.Key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency put: %w", err)
	}
	return nil
}
