package postgres

import (
	"context"
	"errors"
	"fmt"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var endpointColumns = []string{"id", "url", "events", "secret", "enabled", "created_at"}

var deliveryColumns = []string{
	"id", "endpoint_id", "event_id", "event_type", "attempt", "status",
	"response_status", "error_code", "created_at", "delivered_at",
}

var deadLetterColumns = []string{
	"id", "endpoint_id", "endpoint_url", "event_id", "event_type", "attempts",
	"status", "replay_count", "failure_reason", "response_status", "error_code",
	"payload", "failed_at", "last_replayed_at",
}

// WebhookRepo implements ports.WebhookRepository over the
// webhook_endpoints, webhook_deliveries and webhook_dead_letters tables.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// ---- Endpoints ----

// CreateEndpoint inserts a webhook endpoint.
func (r *WebhookRepo) CreateEndpoint(ctx context.Context, e *domain.WebhookEndpoint) error {
	query := `INSERT INTO webhook_endpoints (id, url, events, secret, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, e.ID, e.URL, e.Events, e.Secret, e.Enabled, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook endpoint: %w", err)
	}
	return nil
}

// GetEndpoint fetches an endpoint by id, or nil when absent.
func (r *WebhookRepo) GetEndpoint(ctx context.Context, id string) (*domain.WebhookEndpoint, error) {
	query := `SELECT id, url, events, secret, enabled, created_at FROM webhook_endpoints WHERE id = $1`

	e := &domain.WebhookEndpoint{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.URL, &e.Events, &e.Secret, &e.Enabled, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook endpoint: %w", err)
	}
	return e, nil
}

// UpdateEndpoint persists the endpoint's mutable fields.
func (r *WebhookRepo) UpdateEndpoint(ctx context.Context, e *domain.WebhookEndpoint) error {
	query := `UPDATE webhook_endpoints SET url = $1, events = $2, secret = $3, enabled = $4 WHERE id = $5`

	tag, err := r.pool.Exec(ctx, query, e.URL, e.Events, e.Secret, e.Enabled, e.ID)
	if err != nil {
		return fmt.Errorf("update webhook endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook endpoint not found: %s", e.ID)
	}
	return nil
}

// ListEndpoints pages endpoints, newest first.
func (r *WebhookRepo) ListEndpoints(ctx context.Context, f ports.EndpointFilter, p ports.Page) ([]domain.WebhookEndpoint, bool, error) {
	var conds []sq.Sqlizer
	if f.Enabled != nil {
		conds = append(conds, sq.Eq{"enabled": *f.Enabled})
	}

	after, err := keysetPredicate(ctx, r.pool, "webhook_endpoints", "created_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect(endpointColumns, "webhook_endpoints", "created_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build endpoint listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.WebhookEndpoint
	for rows.Next() {
		var e domain.WebhookEndpoint
		if err := rows.Scan(&e.ID, &e.URL, &e.Events, &e.Secret, &e.Enabled, &e.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan webhook endpoint row: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate webhook endpoint rows: %w", err)
	}

	hasMore := len(endpoints) > p.Limit
	if hasMore {
		endpoints = endpoints[:p.Limit]
	}
	return endpoints, hasMore, nil
}

// ListEnabledForEvent returns every enabled endpoint subscribed to the
// event type. An empty events array subscribes to all types.
func (r *WebhookRepo) ListEnabledForEvent(ctx context.Context, eventType string) ([]domain.WebhookEndpoint, error) {
	query := `SELECT id, url, events, secret, enabled, created_at
		FROM webhook_endpoints
		WHERE enabled = true AND (cardinality(events) = 0 OR $1 = ANY(events))
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("list enabled endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.WebhookEndpoint
	for rows.Next() {
		var e domain.WebhookEndpoint
		if err := rows.Scan(&e.ID, &e.URL, &e.Events, &e.Secret, &e.Enabled, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook endpoint row: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook endpoint rows: %w", err)
	}
	return endpoints, nil
}

// ---- Deliveries ----

// CreateDelivery appends a per-attempt delivery log row.
func (r *WebhookRepo) CreateDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `INSERT INTO webhook_deliveries (id, endpoint_id, event_id, event_type, attempt, status,
		response_status, error_code, created_at, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.EndpointID, d.EventID, d.EventType, d.Attempt, d.Status,
		d.ResponseStatus, d.ErrorCode, d.CreatedAt, d.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// ListDeliveries pages delivery logs, newest first.
func (r *WebhookRepo) ListDeliveries(ctx context.Context, f ports.DeliveryFilter, p ports.Page) ([]domain.WebhookDelivery, bool, error) {
	var conds []sq.Sqlizer
	if f.EndpointID != nil {
		conds = append(conds, sq.Eq{"endpoint_id": *f.EndpointID})
	}
	if f.EventID != nil {
		conds = append(conds, sq.Eq{"event_id": *f.EventID})
	}
	if f.EventType != nil {
		conds = append(conds, sq.Eq{"event_type": *f.EventType})
	}
	if f.Status != nil {
		conds = append(conds, sq.Eq{"status": *f.Status})
	}

	after, err := keysetPredicate(ctx, r.pool, "webhook_deliveries", "created_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect(deliveryColumns, "webhook_deliveries", "created_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build delivery listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.WebhookDelivery
	for rows.Next() {
		var d domain.WebhookDelivery
		if err := rows.Scan(
			&d.ID, &d.EndpointID, &d.EventID, &d.EventType, &d.Attempt, &d.Status,
			&d.ResponseStatus, &d.ErrorCode, &d.CreatedAt, &d.DeliveredAt,
		); err != nil {
			return nil, false, fmt.Errorf("scan webhook delivery row: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate webhook delivery rows: %w", err)
	}

	hasMore := len(deliveries) > p.Limit
	if hasMore {
		deliveries = deliveries[:p.Limit]
	}
	return deliveries, hasMore, nil
}

// ---- Dead letters ----

// CreateDeadLetter persists an undeliverable webhook with its payload.
func (r *WebhookRepo) CreateDeadLetter(ctx context.Context, dl *domain.WebhookDeadLetter) error {
	query := `INSERT INTO webhook_dead_letters (id, endpoint_id, endpoint_url, event_id, event_type, attempts,
		status, replay_count, failure_reason, response_status, error_code, payload, failed_at, last_replayed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		dl.ID, dl.EndpointID, dl.EndpointURL, dl.EventID, dl.EventType, dl.Attempts,
		dl.Status, dl.ReplayCount, dl.FailureReason, dl.ResponseStatus, dl.ErrorCode,
		dl.Payload, dl.FailedAt, dl.LastReplayedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter fetches a dead-letter by id, or nil when absent.
func (r *WebhookRepo) GetDeadLetter(ctx context.Context, id string) (*domain.WebhookDeadLetter, error) {
	query := `SELECT id, endpoint_id, endpoint_url, event_id, event_type, attempts,
		status, replay_count, failure_reason, response_status, error_code, payload, failed_at, last_replayed_at
		FROM webhook_dead_letters WHERE id = $1`

	dl := &domain.WebhookDeadLetter{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&dl.ID, &dl.EndpointID, &dl.EndpointURL, &dl.EventID, &dl.EventType, &dl.Attempts,
		&dl.Status, &dl.ReplayCount, &dl.FailureReason, &dl.ResponseStatus, &dl.ErrorCode,
		&dl.Payload, &dl.FailedAt, &dl.LastReplayedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook dead letter: %w", err)
	}
	return dl, nil
}

// UpdateDeadLetter persists the dead-letter's replay bookkeeping.
func (r *WebhookRepo) UpdateDeadLetter(ctx context.Context, dl *domain.WebhookDeadLetter) error {
	query := `UPDATE webhook_dead_letters
		SET attempts = $1, status = $2, replay_count = $3, failure_reason = $4,
			response_status = $5, error_code = $6, failed_at = $7, last_replayed_at = $8
		WHERE id = $9`

	tag, err := r.pool.Exec(ctx, query,
		dl.Attempts, dl.Status, dl.ReplayCount, dl.FailureReason,
		dl.ResponseStatus, dl.ErrorCode, dl.FailedAt, dl.LastReplayedAt, dl.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook dead letter not found: %s", dl.ID)
	}
	return nil
}

// ListDeadLetters pages dead-letters, newest first by failure time.
func (r *WebhookRepo) ListDeadLetters(ctx context.Context, f ports.DeadLetterFilter, p ports.Page) ([]domain.WebhookDeadLetter, bool, error) {
	var conds []sq.Sqlizer
	if f.Status != nil {
		conds = append(conds, sq.Eq{"status": *f.Status})
	}
	if f.EventType != nil {
		conds = append(conds, sq.Eq{"event_type": *f.EventType})
	}
	if f.EndpointID != nil {
		conds = append(conds, sq.Eq{"endpoint_id": *f.EndpointID})
	}

	after, err := keysetPredicate(ctx, r.pool, "webhook_dead_letters", "failed_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect(deadLetterColumns, "webhook_dead_letters", "failed_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build dead letter listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list webhook dead letters: %w", err)
	}
	defer rows.Close()

	var letters []domain.WebhookDeadLetter
	for rows.Next() {
		var dl domain.WebhookDeadLetter
		if err := rows.Scan(
			&dl.ID, &dl.EndpointID, &dl.EndpointURL, &dl.EventID, &dl.EventType, &dl.Attempts,
			&dl.Status, &dl.ReplayCount, &dl.FailureReason, &dl.ResponseStatus, &dl.ErrorCode,
			&dl.Payload, &dl.FailedAt, &dl.LastReplayedAt,
		); err != nil {
			return nil, false, fmt.Errorf("scan webhook dead letter row: %w", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate webhook dead letter rows: %w", err)
	}

	hasMore := len(letters) > p.Limit
	if hasMore {
		letters = letters[:p.Limit]
	}
	return letters, hasMore, nil
}
