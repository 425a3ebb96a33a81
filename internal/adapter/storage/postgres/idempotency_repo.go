package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository over the
// idempotency_records table. Expired rows are treated as absent and
// evicted opportunistically on read.
type IdempotencyRepo struct {
	pool  Pool
	ttl   time.Duration
	clock ports.Clock
}

// NewIdempotencyRepo creates the repository with the record TTL.
func NewIdempotencyRepo(pool Pool, ttl time.Duration, clock ports.Clock) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool, ttl: ttl, clock: clock}
}

// Get fetches the record for (scope, key), or nil when absent or expired.
func (r *IdempotencyRepo) Get(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT scope, key, payload_fingerprint, status_code, response_body, created_at
		FROM idempotency_records WHERE scope = $1 AND key = $2`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, scope, key).Scan(
		&rec.Scope, &rec.Key, &rec.PayloadFingerprint, &rec.StatusCode, &rec.ResponseBody, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}

	if rec.Expired(r.ttl, r.clock.Now()) {
		// Eviction is best-effort; the row is invisible either way.
		_, _ = r.pool.Exec(ctx, `DELETE FROM idempotency_records WHERE scope = $1 AND key = $2`, scope, key)
		return nil, nil
	}
	return rec, nil
}

// Put stores the record; a concurrent duplicate is a silent no-op so the
// first writer wins.
func (r *IdempotencyRepo) Put(ctx context.Context, rec *domain.IdempotencyRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock.Now()
	}
	query := `INSERT INTO idempotency_records (scope, key, payload_fingerprint, status_code, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, key) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		rec.Scope, rec.Key, rec.PayloadFingerprint, rec.StatusCode, rec.ResponseBody, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put idempotency record: %w", err)
	}
	return nil
}
