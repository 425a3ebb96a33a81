package idempotency

import (
	"context"
	"encoding/json"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/pkg/apperror"
)

// Result is the outcome of an idempotent execution. Replayed is true when
// the response came from a stored record instead of running the body.
type Result struct {
	StatusCode int
	Body       json.RawMessage
	Replayed   bool
}

// Body is the operation executed under the idempotency key. It returns the
// HTTP status and response payload to store and replay.
type Body func(ctx context.Context) (int, any, error)

// Executor wraps write operations with the replay/conflict protocol: the
// key is locked for the whole execute-and-store sequence, so a concurrent
// duplicate blocks and then replays the first writer's stored response.
type Executor struct {
	repo  ports.IdempotencyRepository
	locks ports.KeyLocker
}

// NewExecutor creates an executor over the record store and lock provider.
func NewExecutor(repo ports.IdempotencyRepository, locks ports.KeyLocker) *Executor {
	return &Executor{repo: repo, locks: locks}
}

// Execute runs fn at most once per (scope, key, payload). A stored record
// with a matching fingerprint replays its response; a differing fingerprint
// is a key-reuse conflict. Errors from fn propagate without storing a
// record, so the caller may retry with the same key.
func (e *Executor) Execute(ctx context.Context, scope, key string, payload []byte, fn Body) (*Result, error) {
	fingerprint := domain.Fingerprint(payload)
	var res *Result

	err := e.locks.WithLock(ctx, scope+":"+key, func(ctx context.Context) error {
		rec, err := e.repo.Get(ctx, scope, key)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.PayloadFingerprint != fingerprint {
				return apperror.ErrIdempotencyConflict()
			}
			res = &Result{StatusCode: rec.StatusCode, Body: rec.ResponseBody, Replayed: true}
			return nil
		}

		status, body, err := fn(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		if err := e.repo.Put(ctx, &domain.IdempotencyRecord{
			Scope:              scope,
			Key:                key,
			PayloadFingerprint: fingerprint,
			StatusCode:         status,
			ResponseBody:       raw,
		}); err != nil {
			return err
		}
		res = &Result{StatusCode: status, Body: raw}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
