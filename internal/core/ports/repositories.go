package ports

import (
	"context"
	"errors"
	"time"

	"pmc-orchestrator/internal/core/domain"
)

// ErrCursorOutOfWindow is returned by listing methods when the page's
// AfterID does not exist inside the currently filtered result set.
// Handlers map it to the invalid_cursor error kind.
var ErrCursorOutOfWindow = errors.New("cursor id not in filtered window")

// Page is a keyset page request. AfterID is the decoded internal cursor:
// the page starts strictly after that id in (created_at DESC, id DESC)
// order. Empty AfterID means the first page.
type Page struct {
	Limit   int
	AfterID string
}

// IntentFilter narrows payment intent listings. Nil fields are ignored.
type IntentFilter struct {
	AmountMin         *int64
	AmountMax         *int64
	Currency          *string
	Status            *string
	CustomerID        *string
	Provider          *string
	ProviderReference *string
	MethodType        *string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
}

// RefundFilter narrows refund listings.
type RefundFilter struct {
	AmountMin       *int64
	AmountMax       *int64
	PaymentIntentID *string
	Status          *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// ChargebackFilter narrows chargeback listings.
type ChargebackFilter struct {
	PaymentIntentID *string
	Status          *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// LedgerFilter narrows ledger listings. Reconciliation uses Currency plus
// the created window.
type LedgerFilter struct {
	PaymentIntentID *string
	EntryType       *string
	Currency        *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// PaymentRepository persists intents, refunds, chargebacks and the ledger.
// Listing methods return the page plus a has-more flag and honor the
// (created_at DESC, id DESC) ordering contract.
type PaymentRepository interface {
	CreateIntent(ctx context.Context, intent *domain.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
	// UpdateIntentIf persists the intent's mutable fields only when the
	// stored status still equals expect (optimistic compare-and-set,
	// keeping transitions atomic against concurrent writers).
	UpdateIntentIf(ctx context.Context, intent *domain.PaymentIntent, expect domain.IntentStatus) (bool, error)
	ListIntents(ctx context.Context, f IntentFilter, p Page) ([]domain.PaymentIntent, bool, error)

	CreateRefund(ctx context.Context, refund *domain.Refund) error
	ListRefunds(ctx context.Context, f RefundFilter, p Page) ([]domain.Refund, bool, error)

	CreateChargeback(ctx context.Context, cb *domain.Chargeback) error
	GetChargeback(ctx context.Context, id string) (*domain.Chargeback, error)
	UpdateChargebackIf(ctx context.Context, cb *domain.Chargeback, expect domain.ChargebackStatus) (bool, error)
	ListChargebacks(ctx context.Context, f ChargebackFilter, p Page) ([]domain.Chargeback, bool, error)

	CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, f LedgerFilter, p Page) ([]domain.LedgerEntry, bool, error)
}

// EndpointFilter narrows webhook endpoint listings.
type EndpointFilter struct {
	Enabled *bool
}

// DeliveryFilter narrows webhook delivery listings.
type DeliveryFilter struct {
	EndpointID *string
	EventID    *string
	EventType  *string
	Status     *string
}

// DeadLetterFilter narrows dead-letter listings.
type DeadLetterFilter struct {
	Status     *string
	EventType  *string
	EndpointID *string
}

// WebhookRepository persists endpoints, per-attempt delivery logs and the
// dead-letter queue.
type WebhookRepository interface {
	CreateEndpoint(ctx context.Context, e *domain.WebhookEndpoint) error
	GetEndpoint(ctx context.Context, id string) (*domain.WebhookEndpoint, error)
	UpdateEndpoint(ctx context.Context, e *domain.WebhookEndpoint) error
	ListEndpoints(ctx context.Context, f EndpointFilter, p Page) ([]domain.WebhookEndpoint, bool, error)
	// ListEnabledForEvent returns every enabled endpoint subscribed to the
	// event type (empty subscription list means all types).
	ListEnabledForEvent(ctx context.Context, eventType string) ([]domain.WebhookEndpoint, error)

	CreateDelivery(ctx context.Context, d *domain.WebhookDelivery) error
	ListDeliveries(ctx context.Context, f DeliveryFilter, p Page) ([]domain.WebhookDelivery, bool, error)

	CreateDeadLetter(ctx context.Context, dl *domain.WebhookDeadLetter) error
	GetDeadLetter(ctx context.Context, id string) (*domain.WebhookDeadLetter, error)
	UpdateDeadLetter(ctx context.Context, dl *domain.WebhookDeadLetter) error
	ListDeadLetters(ctx context.Context, f DeadLetterFilter, p Page) ([]domain.WebhookDeadLetter, bool, error)
}

// EventFilter narrows published-event listings.
type EventFilter struct {
	PaymentIntentID *string
	EventType       *string
	OccurredFrom    *time.Time
	OccurredTo      *time.Time
}

// OutboxRepository is the durable side of the event pipeline: an outbox
// row per emitted event, an inbox row per (consumer group, event) already
// processed.
type OutboxRepository interface {
	// InsertOutbox appends an outbox row keyed by event id; a duplicate id
	// is a silent no-op (inserted=false).
	InsertOutbox(ctx context.Context, event domain.Event) (inserted bool, err error)
	// MarkPublished records the broker stream id and publication time.
	MarkPublished(ctx context.Context, eventID, streamID string, at time.Time) error
	// ListUnpublished returns outbox events with no published_at, oldest
	// first, for the crash-recovery republish pass.
	ListUnpublished(ctx context.Context, limit int) ([]domain.Event, error)
	// ListPublished returns published events, filtered and keyset-paged
	// by (occurred_at DESC, id DESC).
	ListPublished(ctx context.Context, f EventFilter, p Page) ([]domain.Event, bool, error)

	// InsertInbox records that a consumer group saw an event. Returns
	// false when the pair already exists (duplicate delivery).
	InsertInbox(ctx context.Context, group, eventID string) (inserted bool, err error)
	// DeleteInbox removes the pair so a failed message is reprocessed.
	DeleteInbox(ctx context.Context, group, eventID string) error
}

// IdempotencyRepository persists idempotency records keyed by (scope, key).
type IdempotencyRepository interface {
	// Get returns the record, or nil when absent or past its TTL (expired
	// rows may be evicted on read).
	Get(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error)
	// Put stores the record; first writer wins and a duplicate is a
	// silent no-op.
	Put(ctx context.Context, rec *domain.IdempotencyRecord) error
}
