package ports

import (
	"context"
	"time"

	"pmc-orchestrator/internal/core/domain"
)

// Clock supplies the current time. Production uses the system clock;
// tests substitute a fake so lifecycle timestamps are deterministic.
type Clock interface {
	Now() time.Time
}

// KeyLocker serializes critical sections by name. The in-process variant
// is a map of named mutexes; the distributed variant is a redis advisory
// lock keyed by a hash of the name.
type KeyLocker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// RateLimitResult is the outcome of a token-bucket consume.
type RateLimitResult struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	ResetSeconds      int64
	RetryAfterSeconds int64
}

// RateLimiter applies a token bucket per caller identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity string) (*RateLimitResult, error)
}

// AuthorizeRequest is the provider-facing authorization input.
type AuthorizeRequest struct {
	Amount   int64
	Currency string
	Method   domain.PaymentMethodType
	Token    string
}

// ProviderResult is the outcome of a provider call. A decline is OK=false
// with a failure code; infrastructure errors surface as Go errors and are
// treated as transient by callers.
type ProviderResult struct {
	OK          bool
	Reference   string
	FailureCode string
}

// Provider is a payment provider adapter.
type Provider interface {
	Name() string
	Supports(method domain.PaymentMethodType) bool
	Authorize(ctx context.Context, req AuthorizeRequest) (*ProviderResult, error)
	Capture(ctx context.Context, reference string, amount int64, currency string) (*ProviderResult, error)
	Refund(ctx context.Context, reference string, amount int64, currency string) (*ProviderResult, error)
}

// ProviderRouter selects authorization candidates and tracks outcomes for
// circuit breaking.
type ProviderRouter interface {
	// Candidates returns the ordered, breaker-gated providers for a
	// method. Errors: provider_not_available when nothing supports the
	// method, provider_circuit_open when everything eligible is open.
	Candidates(method domain.PaymentMethodType) ([]Provider, error)
	// Provider returns a provider by name regardless of breaker state,
	// for follow-up captures and refunds against an authorized intent.
	Provider(name string) (Provider, bool)
	// RecordOutcome feeds breaker bookkeeping after a provider call.
	RecordOutcome(providerName string, ok bool, failureCode string)
}

// RiskOutcome is the risk engine's verdict.
type RiskOutcome string

const (
	RiskAllow  RiskOutcome = "allow"
	RiskReview RiskOutcome = "review"
	RiskDeny   RiskOutcome = "deny"
)

// RiskDecision carries the verdict and a reason for review/deny.
type RiskDecision struct {
	Outcome RiskOutcome
	Reason  string
}

// RiskEngine is a pure decision function over intent attributes.
type RiskEngine interface {
	Evaluate(ctx context.Context, intent *domain.PaymentIntent) RiskDecision
}

// EventHandler processes one event. A non-nil error triggers redelivery.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes lifecycle events and fans them out to subscribers.
// The in-memory variant invokes subscribers synchronously on Publish; the
// durable variant appends to an outbox + stream and consumes via a
// consumer group with inbox deduplication.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) error
	Subscribe(handler EventHandler)
	ListPublishedEvents(ctx context.Context, f EventFilter, p Page) ([]domain.Event, bool, error)
}
