package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"

	sq "github.com/Masterminds/squirrel"
)

// OutboxRepo implements ports.OutboxRepository over the event_outbox and
// event_inbox tables. The full event envelope is stored as jsonb next to
// the columns used for filtering.
type OutboxRepo struct {
	pool Pool
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(pool Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

// InsertOutbox appends an outbox row keyed by event id; a duplicate id is
// a silent no-op.
func (r *OutboxRepo) InsertOutbox(ctx context.Context, event domain.Event) (bool, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}
	intentID, _ := event.Data["payment_intent_id"].(string)

	query := `INSERT INTO event_outbox (id, event_type, payment_intent_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, event.ID, event.Type, intentID, event.OccurredAt, payload)
	if err != nil {
		return false, fmt.Errorf("insert outbox row: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPublished records the broker stream id and publication time.
func (r *OutboxRepo) MarkPublished(ctx context.Context, eventID, streamID string, at time.Time) error {
	query := `UPDATE event_outbox SET stream_id = $1, published_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, streamID, at, eventID)
	if err != nil {
		return fmt.Errorf("mark outbox row published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox row not found: %s", eventID)
	}
	return nil
}

// ListUnpublished returns events never appended to the stream, oldest
// first, for the crash-recovery pass.
func (r *OutboxRepo) ListUnpublished(ctx context.Context, limit int) ([]domain.Event, error) {
	query := `SELECT payload FROM event_outbox WHERE published_at IS NULL
		ORDER BY occurred_at ASC, id ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		var ev domain.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal outbox event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return events, nil
}

// ListPublished pages published events, newest first by occurrence.
func (r *OutboxRepo) ListPublished(ctx context.Context, f ports.EventFilter, p ports.Page) ([]domain.Event, bool, error) {
	conds := []sq.Sqlizer{sq.NotEq{"published_at": nil}}
	if f.PaymentIntentID != nil {
		conds = append(conds, sq.Eq{"payment_intent_id": *f.PaymentIntentID})
	}
	if f.EventType != nil {
		conds = append(conds, sq.Eq{"event_type": *f.EventType})
	}
	if f.OccurredFrom != nil {
		conds = append(conds, sq.GtOrEq{"occurred_at": *f.OccurredFrom})
	}
	if f.OccurredTo != nil {
		conds = append(conds, sq.LtOrEq{"occurred_at": *f.OccurredTo})
	}

	after, err := keysetPredicate(ctx, r.pool, "event_outbox", "occurred_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect([]string{"payload"}, "event_outbox", "occurred_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build event listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list published events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, fmt.Errorf("scan outbox row: %w", err)
		}
		var ev domain.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, false, fmt.Errorf("unmarshal outbox event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate outbox rows: %w", err)
	}

	hasMore := len(events) > p.Limit
	if hasMore {
		events = events[:p.Limit]
	}
	return events, hasMore, nil
}

// InsertInbox records that a consumer group saw an event; returns false on
// a duplicate delivery.
func (r *OutboxRepo) InsertInbox(ctx context.Context, group, eventID string) (bool, error) {
	query := `INSERT INTO event_inbox (consumer_group, event_id, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (consumer_group, event_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, group, eventID)
	if err != nil {
		return false, fmt.Errorf("insert inbox row: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteInbox removes the pair so a failed message is reprocessed on
// redelivery.
func (r *OutboxRepo) DeleteInbox(ctx context.Context, group, eventID string) error {
	query := `DELETE FROM event_inbox WHERE consumer_group = $1 AND event_id = $2`

	if _, err := r.pool.Exec(ctx, query, group, eventID); err != nil {
		return fmt.Errorf("delete inbox row: %w", err)
	}
	return nil
}
