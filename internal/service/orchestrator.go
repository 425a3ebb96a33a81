package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/idempotency"
	"pmc-orchestrator/internal/metrics"
	"pmc-orchestrator/internal/provider"
	"pmc-orchestrator/pkg/apperror"
)

// Idempotency scopes. Per-resource scopes embed the intent/chargeback id
// so the same caller key can be reused across resources.
const (
	ScopeCreateIntent      = "create_payment_intent"
	ScopeConfirmIntent     = "confirm_payment_intent"
	ScopeCaptureIntent     = "capture_payment_intent"
	ScopeCancelIntent      = "cancel_payment_intent"
	ScopeCreateRefund      = "create_refund"
	ScopeCreateChargeback  = "create_chargeback"
	ScopeResolveChargeback = "resolve_chargeback"
)

// scanPageSize is the internal page size used when the orchestrator walks
// a full listing (chargeback reservations, reconciliation).
const scanPageSize = 200

// Orchestrator drives the payment lifecycle: every write runs under the
// idempotency executor, transitions go through the state machine with a
// compare-and-set persist, and each externally-visible change publishes
// exactly one event.
type Orchestrator struct {
	repo     ports.PaymentRepository
	router   ports.ProviderRouter
	risk     ports.RiskEngine
	bus      ports.EventBus
	executor *idempotency.Executor
	clock    ports.Clock
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(
	repo ports.PaymentRepository,
	router ports.ProviderRouter,
	risk ports.RiskEngine,
	bus ports.EventBus,
	executor *idempotency.Executor,
	clock ports.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		router:   router,
		risk:     risk,
		bus:      bus,
		executor: executor,
		clock:    clock,
		metrics:  m,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// CreateIntentRequest carries the validated create input.
type CreateIntentRequest struct {
	Amount        int64
	Currency      string
	CustomerID    string
	MethodType    domain.PaymentMethodType
	MethodToken   string
	CaptureMethod domain.CaptureMethod
}

// CreateRefundRequest carries the validated refund input.
type CreateRefundRequest struct {
	PaymentIntentID string
	Amount          int64
	Reason          *domain.RefundReason
}

// CreateChargebackRequest carries the validated chargeback input.
type CreateChargebackRequest struct {
	PaymentIntentID string
	Amount          int64
	Reason          domain.ChargebackReason
	EvidenceURL     *string
}

// CreateIntent persists a new intent in requires_confirmation.
func (o *Orchestrator) CreateIntent(ctx context.Context, key string, payload []byte, req CreateIntentRequest) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeCreateIntent, key, payload, func(ctx context.Context) (int, any, error) {
		now := o.clock.Now().UTC()
		intent := &domain.PaymentIntent{
			ID:                 domain.NewID(domain.PrefixPaymentIntent),
			Amount:             req.Amount,
			Currency:           req.Currency,
			Status:             domain.IntentStatusRequiresConfirmation,
			CaptureMethod:      req.CaptureMethod,
			CustomerID:         req.CustomerID,
			PaymentMethodType:  req.MethodType,
			PaymentMethodToken: req.MethodToken,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := o.repo.CreateIntent(ctx, intent); err != nil {
			return 0, nil, apperror.InternalError(err)
		}
		o.publish(ctx, domain.EventIntentCreated, intentData(intent))
		return http.StatusCreated, intent, nil
	})
}

// ConfirmIntent moves an intent through risk and the authorization loop.
// Confirming an intent past requires_confirmation is an idempotent no-op
// returning its current state.
func (o *Orchestrator) ConfirmIntent(ctx context.Context, key string, payload []byte, id string) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeConfirmIntent+":"+id, key, payload, func(ctx context.Context) (int, any, error) {
		intent, err := o.loadIntent(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		if intent.Status != domain.IntentStatusRequiresConfirmation {
			return http.StatusOK, intent, nil
		}

		if err := o.transition(ctx, intent, domain.IntentStatusProcessing); err != nil {
			return 0, nil, err
		}
		o.publish(ctx, domain.EventIntentProcessing, intentData(intent))

		decision := o.risk.Evaluate(ctx, intent)
		switch decision.Outcome {
		case ports.RiskDeny:
			if err := o.failIntent(ctx, intent, "risk_denied", decision.Reason); err != nil {
				return 0, nil, err
			}
			return http.StatusOK, intent, nil
		case ports.RiskReview:
			if err := o.transition(ctx, intent, domain.IntentStatusRequiresAction); err != nil {
				return 0, nil, err
			}
			data := intentData(intent)
			data["reason"] = decision.Reason
			o.publish(ctx, domain.EventIntentRequiresAction, data)
			return http.StatusOK, intent, nil
		}

		if err := o.authorize(ctx, intent); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, intent, nil
	})
}

// authorize runs the provider failover loop on an intent in processing.
func (o *Orchestrator) authorize(ctx context.Context, intent *domain.PaymentIntent) error {
	candidates, err := o.router.Candidates(intent.PaymentMethodType)
	if err != nil {
		// No eligible provider at all. The intent fails terminally and the
		// capacity error still surfaces to the caller, unstored, so a retry
		// after the cooldown observes the failed intent.
		if failErr := o.failIntent(ctx, intent, provider.FailureProviderUnavailable, ""); failErr != nil {
			return failErr
		}
		return err
	}

	var (
		authorized bool
		finalCode  string
	)
	for _, p := range candidates {
		res, err := p.Authorize(ctx, ports.AuthorizeRequest{
			Amount:   intent.Amount,
			Currency: intent.Currency,
			Method:   intent.PaymentMethodType,
			Token:    intent.PaymentMethodToken,
		})
		ok, code := false, provider.FailureTransientNetworkError
		if err == nil {
			ok, code = res.OK, res.FailureCode
		}
		o.router.RecordOutcome(p.Name(), ok, code)
		if o.metrics != nil {
			o.metrics.ObserveProviderCall(p.Name(), "authorize", ok, code)
		}

		// Last attempt wins, even when it ultimately failed.
		name := p.Name()
		intent.Provider = &name
		if res != nil && res.Reference != "" {
			ref := res.Reference
			intent.ProviderReference = &ref
		}

		if ok {
			authorized = true
			break
		}
		finalCode = code
		if !provider.IsTransient(code) {
			break
		}
	}

	if !authorized {
		if finalCode == "" {
			finalCode = provider.FailureProviderUnavailable
		}
		return o.failIntent(ctx, intent, finalCode, "")
	}

	intent.AuthorizedAmount = intent.Amount

	if intent.CaptureMethod == domain.CaptureAutomatic {
		intent.CapturedAmount = intent.Amount
		if err := o.transition(ctx, intent, domain.IntentStatusSucceeded); err != nil {
			return err
		}
		if err := o.appendLedger(ctx, intent, domain.LedgerEntryAuthorization, domain.LedgerCredit, intent.AuthorizedAmount, nil); err != nil {
			return err
		}
		if err := o.appendLedger(ctx, intent, domain.LedgerEntryCapture, domain.LedgerCredit, intent.CapturedAmount, nil); err != nil {
			return err
		}
		o.publish(ctx, domain.EventIntentSucceeded, intentData(intent))
		o.observeOutcome(intent.Status, "")
		return nil
	}

	if err := o.transition(ctx, intent, domain.IntentStatusRequiresAction); err != nil {
		return err
	}
	if err := o.appendLedger(ctx, intent, domain.LedgerEntryAuthorization, domain.LedgerCredit, intent.AuthorizedAmount, nil); err != nil {
		return err
	}
	data := intentData(intent)
	data["reason"] = "manual_capture_required"
	o.publish(ctx, domain.EventIntentRequiresAction, data)
	return nil
}

// CaptureIntent settles part or all of a manually-captured authorization.
func (o *Orchestrator) CaptureIntent(ctx context.Context, key string, payload []byte, id string, amount int64) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeCaptureIntent+":"+id, key, payload, func(ctx context.Context) (int, any, error) {
		intent, err := o.loadIntent(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		if intent.CaptureMethod != domain.CaptureManual {
			return 0, nil, apperror.ErrInvalidCaptureMethod()
		}
		if intent.Status != domain.IntentStatusRequiresAction {
			return 0, nil, apperror.ErrInvalidPaymentState("capture", string(intent.Status))
		}
		if intent.ProviderReference == nil {
			return 0, nil, apperror.ErrMissingProviderReference()
		}
		if amount <= 0 {
			return 0, nil, apperror.ErrInvalidField("amount", "Capture amount must be a positive integer")
		}
		if amount > intent.AmountCapturable() {
			return 0, nil, apperror.ErrAmountExceedsCapturable()
		}

		if err := o.transition(ctx, intent, domain.IntentStatusProcessing); err != nil {
			return 0, nil, err
		}
		o.publish(ctx, domain.EventIntentProcessing, intentData(intent))

		p, found := o.router.Provider(*intent.Provider)
		if !found {
			return 0, nil, apperror.InternalError(fmt.Errorf("provider %s not registered", *intent.Provider))
		}
		res, err := p.Capture(ctx, *intent.ProviderReference, amount, intent.Currency)
		ok, code := false, provider.FailureTransientNetworkError
		if err == nil {
			ok, code = res.OK, res.FailureCode
		}
		if o.metrics != nil {
			o.metrics.ObserveProviderCall(p.Name(), "capture", ok, code)
		}

		if !ok {
			if err := o.failIntent(ctx, intent, code, ""); err != nil {
				return 0, nil, err
			}
			return http.StatusOK, intent, nil
		}

		intent.CapturedAmount += amount
		next := domain.IntentStatusRequiresAction
		if intent.CapturedAmount >= intent.AuthorizedAmount {
			next = domain.IntentStatusSucceeded
		}
		if err := o.transition(ctx, intent, next); err != nil {
			return 0, nil, err
		}
		if err := o.appendLedger(ctx, intent, domain.LedgerEntryCapture, domain.LedgerCredit, amount, nil); err != nil {
			return 0, nil, err
		}
		if next == domain.IntentStatusSucceeded {
			o.publish(ctx, domain.EventIntentSucceeded, intentData(intent))
			o.observeOutcome(intent.Status, "")
		}
		return http.StatusOK, intent, nil
	})
}

// CancelIntent cancels a not-yet-processing intent. Canceling an already
// canceled intent is an idempotent no-op.
func (o *Orchestrator) CancelIntent(ctx context.Context, key string, payload []byte, id string) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeCancelIntent+":"+id, key, payload, func(ctx context.Context) (int, any, error) {
		intent, err := o.loadIntent(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		if intent.Status == domain.IntentStatusCanceled {
			return http.StatusOK, intent, nil
		}
		if intent.IsTerminal() || intent.Status == domain.IntentStatusProcessing {
			return 0, nil, apperror.ErrInvalidPaymentState("cancel", string(intent.Status))
		}

		if err := o.transition(ctx, intent, domain.IntentStatusCanceled); err != nil {
			return 0, nil, err
		}
		o.publish(ctx, domain.EventIntentCanceled, intentData(intent))
		o.observeOutcome(intent.Status, "")
		return http.StatusOK, intent, nil
	})
}

// CreateRefund returns captured funds through the authorizing provider.
// The refund record is persisted whether the provider accepted it or not.
func (o *Orchestrator) CreateRefund(ctx context.Context, key string, payload []byte, req CreateRefundRequest) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeCreateRefund, key, payload, func(ctx context.Context) (int, any, error) {
		intent, err := o.loadIntent(ctx, req.PaymentIntentID)
		if err != nil {
			return 0, nil, err
		}
		if intent.ProviderReference == nil {
			return 0, nil, apperror.ErrMissingProviderReference()
		}
		if req.Amount <= 0 {
			return 0, nil, apperror.ErrInvalidField("amount", "Refund amount must be a positive integer")
		}
		if req.Amount > intent.AmountRefundable() {
			return 0, nil, apperror.ErrAmountExceedsRefundable()
		}

		p, found := o.router.Provider(*intent.Provider)
		if !found {
			return 0, nil, apperror.InternalError(fmt.Errorf("provider %s not registered", *intent.Provider))
		}
		res, err := p.Refund(ctx, *intent.ProviderReference, req.Amount, intent.Currency)
		ok, code := false, provider.FailureTransientNetworkError
		if err == nil {
			ok, code = res.OK, res.FailureCode
		}
		if o.metrics != nil {
			o.metrics.ObserveProviderCall(p.Name(), "refund", ok, code)
		}

		refund := &domain.Refund{
			ID:              domain.NewID(domain.PrefixRefund),
			PaymentIntentID: intent.ID,
			Amount:          req.Amount,
			Status:          domain.RefundStatusFailed,
			Reason:          req.Reason,
			CreatedAt:       o.clock.Now().UTC(),
		}
		if ok {
			refund.Status = domain.RefundStatusSucceeded
		}
		if err := o.repo.CreateRefund(ctx, refund); err != nil {
			return 0, nil, apperror.InternalError(err)
		}

		data := map[string]any{
			"refund_id":         refund.ID,
			"payment_intent_id": intent.ID,
			"amount":            refund.Amount,
			"currency":          intent.Currency,
		}
		if !ok {
			data["failure_code"] = code
			o.publish(ctx, domain.EventRefundFailed, data)
			return http.StatusCreated, refund, nil
		}

		intent.RefundedAmount += req.Amount
		intent.UpdatedAt = o.clock.Now().UTC()
		if err := o.saveIntent(ctx, intent, "refund"); err != nil {
			return 0, nil, err
		}
		if err := o.appendLedger(ctx, intent, domain.LedgerEntryRefund, domain.LedgerDebit, req.Amount, &refund.ID); err != nil {
			return 0, nil, err
		}
		o.publish(ctx, domain.EventRefundSucceeded, data)
		return http.StatusCreated, refund, nil
	})
}

// CreateChargeback opens a dispute against the intent's captured funds,
// bounded by what is not already refunded or reserved by other disputes.
func (o *Orchestrator) CreateChargeback(ctx context.Context, key string, payload []byte, req CreateChargebackRequest) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeCreateChargeback, key, payload, func(ctx context.Context) (int, any, error) {
		intent, err := o.loadIntent(ctx, req.PaymentIntentID)
		if err != nil {
			return 0, nil, err
		}
		if req.Amount <= 0 {
			return 0, nil, apperror.ErrInvalidField("amount", "Chargeback amount must be a positive integer")
		}

		reserved, err := o.reservedChargebackAmount(ctx, intent.ID)
		if err != nil {
			return 0, nil, err
		}
		disputable := intent.CapturedAmount - intent.RefundedAmount - reserved
		if disputable < 0 {
			disputable = 0
		}
		if req.Amount > disputable {
			return 0, nil, apperror.ErrAmountExceedsDisputable()
		}

		now := o.clock.Now().UTC()
		cb := &domain.Chargeback{
			ID:              domain.NewID(domain.PrefixChargeback),
			PaymentIntentID: intent.ID,
			Amount:          req.Amount,
			Reason:          req.Reason,
			Status:          domain.ChargebackStatusOpen,
			EvidenceURL:     req.EvidenceURL,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := o.repo.CreateChargeback(ctx, cb); err != nil {
			return 0, nil, apperror.InternalError(err)
		}

		o.publish(ctx, domain.EventChargebackOpened, chargebackData(cb))
		return http.StatusCreated, cb, nil
	})
}

// ResolveChargeback moves a dispute to under_review, won or lost.
// Resolving to the current status is an idempotent no-op; terminal
// disputes cannot be reopened.
func (o *Orchestrator) ResolveChargeback(ctx context.Context, key string, payload []byte, id string, target domain.ChargebackStatus) (*idempotency.Result, error) {
	return o.execute(ctx, ScopeResolveChargeback+":"+id, key, payload, func(ctx context.Context) (int, any, error) {
		cb, err := o.repo.GetChargeback(ctx, id)
		if err != nil {
			return 0, nil, apperror.InternalError(err)
		}
		if cb == nil {
			return 0, nil, apperror.ErrNotFound("Chargeback")
		}
		if cb.Status == target {
			return http.StatusOK, cb, nil
		}
		if cb.IsTerminal() {
			return 0, nil, apperror.ErrInvalidChargebackState(string(cb.Status))
		}

		from := cb.Status
		cb.Status = target
		cb.UpdatedAt = o.clock.Now().UTC()
		moved, err := o.repo.UpdateChargebackIf(ctx, cb, from)
		if err != nil {
			return 0, nil, apperror.InternalError(err)
		}
		if !moved {
			return 0, nil, apperror.ErrInvalidChargebackState(string(from))
		}

		switch target {
		case domain.ChargebackStatusLost:
			intent, err := o.loadIntent(ctx, cb.PaymentIntentID)
			if err != nil {
				return 0, nil, err
			}
			if err := o.appendLedger(ctx, intent, domain.LedgerEntryChargeback, domain.LedgerDebit, cb.Amount, nil); err != nil {
				return 0, nil, err
			}
			o.publish(ctx, domain.EventChargebackLost, chargebackData(cb))
		case domain.ChargebackStatusWon:
			o.publish(ctx, domain.EventChargebackWon, chargebackData(cb))
		}
		return http.StatusOK, cb, nil
	})
}

// GetIntent loads an intent by id.
func (o *Orchestrator) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	return o.loadIntent(ctx, id)
}

// ListIntents pages intents under a filter.
func (o *Orchestrator) ListIntents(ctx context.Context, f ports.IntentFilter, p ports.Page) ([]domain.PaymentIntent, bool, error) {
	items, hasMore, err := o.repo.ListIntents(ctx, f, p)
	if err != nil {
		return nil, false, mapListErr(err)
	}
	return items, hasMore, nil
}

// ListRefunds pages refunds under a filter.
func (o *Orchestrator) ListRefunds(ctx context.Context, f ports.RefundFilter, p ports.Page) ([]domain.Refund, bool, error) {
	items, hasMore, err := o.repo.ListRefunds(ctx, f, p)
	if err != nil {
		return nil, false, mapListErr(err)
	}
	return items, hasMore, nil
}

// GetChargeback loads a chargeback by id.
func (o *Orchestrator) GetChargeback(ctx context.Context, id string) (*domain.Chargeback, error) {
	cb, err := o.repo.GetChargeback(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if cb == nil {
		return nil, apperror.ErrNotFound("Chargeback")
	}
	return cb, nil
}

// ListChargebacks pages chargebacks under a filter.
func (o *Orchestrator) ListChargebacks(ctx context.Context, f ports.ChargebackFilter, p ports.Page) ([]domain.Chargeback, bool, error) {
	items, hasMore, err := o.repo.ListChargebacks(ctx, f, p)
	if err != nil {
		return nil, false, mapListErr(err)
	}
	return items, hasMore, nil
}

// ListLedgerEntries pages the ledger under a filter.
func (o *Orchestrator) ListLedgerEntries(ctx context.Context, f ports.LedgerFilter, p ports.Page) ([]domain.LedgerEntry, bool, error) {
	items, hasMore, err := o.repo.ListLedgerEntries(ctx, f, p)
	if err != nil {
		return nil, false, mapListErr(err)
	}
	return items, hasMore, nil
}

// ListEvents pages published lifecycle events.
func (o *Orchestrator) ListEvents(ctx context.Context, f ports.EventFilter, p ports.Page) ([]domain.Event, bool, error) {
	items, hasMore, err := o.bus.ListPublishedEvents(ctx, f, p)
	if err != nil {
		return nil, false, mapListErr(err)
	}
	return items, hasMore, nil
}

// ReconciliationSummary folds the filtered ledger into settlement totals.
func (o *Orchestrator) ReconciliationSummary(ctx context.Context, f ports.LedgerFilter) (*domain.ReconciliationSummary, error) {
	summary := &domain.ReconciliationSummary{}
	if f.Currency != nil {
		summary.Currency = *f.Currency
	}

	page := ports.Page{Limit: scanPageSize}
	for {
		entries, hasMore, err := o.repo.ListLedgerEntries(ctx, f, page)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		for _, e := range entries {
			summary.Apply(e)
		}
		if !hasMore || len(entries) == 0 {
			break
		}
		page.AfterID = entries[len(entries)-1].ID
	}
	return summary, nil
}

// reservedChargebackAmount sums the amounts of this intent's chargebacks
// that still count against the disputable balance.
func (o *Orchestrator) reservedChargebackAmount(ctx context.Context, intentID string) (int64, error) {
	var reserved int64
	page := ports.Page{Limit: scanPageSize}
	for {
		cbs, hasMore, err := o.repo.ListChargebacks(ctx, ports.ChargebackFilter{PaymentIntentID: &intentID}, page)
		if err != nil {
			return 0, apperror.InternalError(err)
		}
		for i := range cbs {
			if cbs[i].Reserved() {
				reserved += cbs[i].Amount
			}
		}
		if !hasMore || len(cbs) == 0 {
			break
		}
		page.AfterID = cbs[len(cbs)-1].ID
	}
	return reserved, nil
}

// execute wraps a write body in the idempotency protocol and records
// replay hits.
func (o *Orchestrator) execute(ctx context.Context, scope, key string, payload []byte, fn idempotency.Body) (*idempotency.Result, error) {
	res, err := o.executor.Execute(ctx, scope, key, payload, fn)
	if err != nil {
		return nil, err
	}
	if res.Replayed && o.metrics != nil {
		o.metrics.IdempotentReplays.WithLabelValues(scope).Inc()
	}
	return res, nil
}

func (o *Orchestrator) loadIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	intent, err := o.repo.GetIntent(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if intent == nil {
		return nil, apperror.ErrNotFound("Payment intent")
	}
	return intent, nil
}

// transition moves the intent through the state machine and persists it
// with a compare-and-set on the previous status, so a racing transition
// on the same intent surfaces as invalid_state_transition.
func (o *Orchestrator) transition(ctx context.Context, intent *domain.PaymentIntent, to domain.IntentStatus) error {
	from := intent.Status
	if !domain.CanTransition(from, to) {
		return apperror.ErrInvalidStateTransition(string(from), string(to))
	}
	intent.Status = to
	intent.UpdatedAt = o.clock.Now().UTC()

	moved, err := o.repo.UpdateIntentIf(ctx, intent, from)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !moved {
		return apperror.ErrInvalidStateTransition(string(from), string(to))
	}
	return nil
}

// saveIntent persists mutable fields without a status change.
func (o *Orchestrator) saveIntent(ctx context.Context, intent *domain.PaymentIntent, op string) error {
	stored, err := o.repo.UpdateIntentIf(ctx, intent, intent.Status)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !stored {
		return apperror.ErrInvalidPaymentState(op, string(intent.Status))
	}
	return nil
}

// failIntent transitions the intent to failed and publishes the failure.
func (o *Orchestrator) failIntent(ctx context.Context, intent *domain.PaymentIntent, failureCode, reason string) error {
	if err := o.transition(ctx, intent, domain.IntentStatusFailed); err != nil {
		return err
	}
	data := intentData(intent)
	data["failure_code"] = failureCode
	if reason != "" {
		data["reason"] = reason
	}
	o.publish(ctx, domain.EventIntentFailed, data)
	o.observeOutcome(intent.Status, failureCode)
	return nil
}

// appendLedger writes one append-only money movement for the intent.
func (o *Orchestrator) appendLedger(ctx context.Context, intent *domain.PaymentIntent, entryType domain.LedgerEntryType, direction domain.LedgerDirection, amount int64, refundID *string) error {
	entry := &domain.LedgerEntry{
		ID:              domain.NewID(domain.PrefixLedgerEntry),
		PaymentIntentID: intent.ID,
		RefundID:        refundID,
		EntryType:       entryType,
		Direction:       direction,
		Amount:          amount,
		Currency:        intent.Currency,
		CreatedAt:       o.clock.Now().UTC(),
	}
	if intent.Provider != nil {
		entry.Provider = *intent.Provider
	}
	if intent.ProviderReference != nil {
		entry.ProviderReference = *intent.ProviderReference
	}
	if err := o.repo.CreateLedgerEntry(ctx, entry); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

// publish emits a lifecycle event. Publication failures are logged, not
// propagated: in durable mode the outbox recovery pass republishes them.
func (o *Orchestrator) publish(ctx context.Context, typ domain.EventType, data map[string]any) {
	ev := domain.NewEvent(typ, o.clock.Now().UTC(), data)
	if err := o.bus.Publish(ctx, ev); err != nil {
		o.log.Error().Err(err).Str("event_type", string(typ)).Msg("publishing event")
		return
	}
	if o.metrics != nil {
		o.metrics.ObserveEventPublished(string(typ))
	}
}

func (o *Orchestrator) observeOutcome(status domain.IntentStatus, failureCode string) {
	if o.metrics != nil {
		o.metrics.ObservePaymentOutcome(string(status), failureCode)
	}
}

func intentData(intent *domain.PaymentIntent) map[string]any {
	return map[string]any{
		"payment_intent_id": intent.ID,
		"status":            string(intent.Status),
		"amount":            intent.Amount,
		"currency":          intent.Currency,
		"customer_id":       intent.CustomerID,
	}
}

func chargebackData(cb *domain.Chargeback) map[string]any {
	return map[string]any{
		"chargeback_id":     cb.ID,
		"payment_intent_id": cb.PaymentIntentID,
		"amount":            cb.Amount,
		"reason":            string(cb.Reason),
		"status":            string(cb.Status),
	}
}

func mapListErr(err error) error {
	if errors.Is(err, ports.ErrCursorOutOfWindow) {
		return apperror.ErrInvalidCursor()
	}
	return apperror.InternalError(err)
}
