package integration

import (
	"context"
	"sync"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
)

// pageSlice applies keyset paging over a slice that is already in listing
// order (newest first).
func pageSlice[T any](items []T, id func(T) string, p ports.Page) ([]T, bool, error) {
	start := 0
	if p.AfterID != "" {
		found := false
		for i := range items {
			if id(items[i]) == p.AfterID {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, false, ports.ErrCursorOutOfWindow
		}
	}
	rest := items[start:]
	hasMore := false
	if p.Limit > 0 && len(rest) > p.Limit {
		rest = rest[:p.Limit]
		hasMore = true
	}
	return rest, hasMore, nil
}

// memPaymentRepo is an in-memory ports.PaymentRepository that lists in
// reverse insertion order, matching the created_at DESC contract of the
// SQL implementation.
type memPaymentRepo struct {
	mu          sync.Mutex
	intents     map[string]*domain.PaymentIntent
	intentOrder []string
	refunds     []domain.Refund
	chargebacks map[string]*domain.Chargeback
	cbOrder     []string
	ledger      []domain.LedgerEntry
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		intents:     map[string]*domain.PaymentIntent{},
		chargebacks: map[string]*domain.Chargeback{},
	}
}

func (r *memPaymentRepo) CreateIntent(_ context.Context, intent *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *intent
	r.intents[intent.ID] = &cp
	r.intentOrder = append(r.intentOrder, intent.ID)
	return nil
}

func (r *memPaymentRepo) GetIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, nil
	}
	cp := *intent
	return &cp, nil
}

func (r *memPaymentRepo) UpdateIntentIf(_ context.Context, intent *domain.PaymentIntent, expect domain.IntentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.intents[intent.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	cp := *intent
	r.intents[intent.ID] = &cp
	return true, nil
}

func (r *memPaymentRepo) ListIntents(_ context.Context, f ports.IntentFilter, p ports.Page) ([]domain.PaymentIntent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.PaymentIntent
	for i := len(r.intentOrder) - 1; i >= 0; i-- {
		intent := r.intents[r.intentOrder[i]]
		if f.Status != nil && string(intent.Status) != *f.Status {
			continue
		}
		if f.CustomerID != nil && intent.CustomerID != *f.CustomerID {
			continue
		}
		if f.Currency != nil && intent.Currency != *f.Currency {
			continue
		}
		if f.AmountMin != nil && intent.Amount < *f.AmountMin {
			continue
		}
		if f.AmountMax != nil && intent.Amount > *f.AmountMax {
			continue
		}
		matched = append(matched, *intent)
	}
	return pageSlice(matched, func(x domain.PaymentIntent) string { return x.ID }, p)
}

func (r *memPaymentRepo) CreateRefund(_ context.Context, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds = append(r.refunds, *refund)
	return nil
}

func (r *memPaymentRepo) ListRefunds(_ context.Context, f ports.RefundFilter, p ports.Page) ([]domain.Refund, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Refund
	for i := len(r.refunds) - 1; i >= 0; i-- {
		refund := r.refunds[i]
		if f.PaymentIntentID != nil && refund.PaymentIntentID != *f.PaymentIntentID {
			continue
		}
		if f.Status != nil && string(refund.Status) != *f.Status {
			continue
		}
		matched = append(matched, refund)
	}
	return pageSlice(matched, func(x domain.Refund) string { return x.ID }, p)
}

func (r *memPaymentRepo) CreateChargeback(_ context.Context, cb *domain.Chargeback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cb
	r.chargebacks[cb.ID] = &cp
	r.cbOrder = append(r.cbOrder, cb.ID)
	return nil
}

func (r *memPaymentRepo) GetChargeback(_ context.Context, id string) (*domain.Chargeback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.chargebacks[id]
	if !ok {
		return nil, nil
	}
	cp := *cb
	return &cp, nil
}

func (r *memPaymentRepo) UpdateChargebackIf(_ context.Context, cb *domain.Chargeback, expect domain.ChargebackStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.chargebacks[cb.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	cp := *cb
	r.chargebacks[cb.ID] = &cp
	return true, nil
}

func (r *memPaymentRepo) ListChargebacks(_ context.Context, f ports.ChargebackFilter, p ports.Page) ([]domain.Chargeback, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Chargeback
	for i := len(r.cbOrder) - 1; i >= 0; i-- {
		cb := r.chargebacks[r.cbOrder[i]]
		if f.PaymentIntentID != nil && cb.PaymentIntentID != *f.PaymentIntentID {
			continue
		}
		if f.Status != nil && string(cb.Status) != *f.Status {
			continue
		}
		matched = append(matched, *cb)
	}
	return pageSlice(matched, func(x domain.Chargeback) string { return x.ID }, p)
}

func (r *memPaymentRepo) CreateLedgerEntry(_ context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = append(r.ledger, *entry)
	return nil
}

func (r *memPaymentRepo) ListLedgerEntries(_ context.Context, f ports.LedgerFilter, p ports.Page) ([]domain.LedgerEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.LedgerEntry
	for i := len(r.ledger) - 1; i >= 0; i-- {
		entry := r.ledger[i]
		if f.PaymentIntentID != nil && entry.PaymentIntentID != *f.PaymentIntentID {
			continue
		}
		if f.EntryType != nil && string(entry.EntryType) != *f.EntryType {
			continue
		}
		if f.Currency != nil && entry.Currency != *f.Currency {
			continue
		}
		matched = append(matched, entry)
	}
	return pageSlice(matched, func(x domain.LedgerEntry) string { return x.ID }, p)
}

var _ ports.PaymentRepository = (*memPaymentRepo)(nil)

// memWebhookRepo is an in-memory ports.WebhookRepository.
type memWebhookRepo struct {
	mu          sync.Mutex
	endpoints   map[string]*domain.WebhookEndpoint
	epOrder     []string
	deliveries  []domain.WebhookDelivery
	deadLetters map[string]*domain.WebhookDeadLetter
	dlOrder     []string
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{
		endpoints:   map[string]*domain.WebhookEndpoint{},
		deadLetters: map[string]*domain.WebhookDeadLetter{},
	}
}

func (r *memWebhookRepo) CreateEndpoint(_ context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.endpoints[e.ID] = &cp
	r.epOrder = append(r.epOrder, e.ID)
	return nil
}

func (r *memWebhookRepo) GetEndpoint(_ context.Context, id string) (*domain.WebhookEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.endpoints[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *memWebhookRepo) UpdateEndpoint(_ context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.endpoints[e.ID] = &cp
	return nil
}

func (r *memWebhookRepo) ListEndpoints(_ context.Context, f ports.EndpointFilter, p ports.Page) ([]domain.WebhookEndpoint, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.WebhookEndpoint
	for i := len(r.epOrder) - 1; i >= 0; i-- {
		e := r.endpoints[r.epOrder[i]]
		if f.Enabled != nil && e.Enabled != *f.Enabled {
			continue
		}
		matched = append(matched, *e)
	}
	return pageSlice(matched, func(x domain.WebhookEndpoint) string { return x.ID }, p)
}

func (r *memWebhookRepo) ListEnabledForEvent(_ context.Context, eventType string) ([]domain.WebhookEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookEndpoint
	for _, id := range r.epOrder {
		e := r.endpoints[id]
		if e.Enabled && e.Accepts(domain.EventType(eventType)) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memWebhookRepo) CreateDelivery(_ context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, *d)
	return nil
}

func (r *memWebhookRepo) ListDeliveries(_ context.Context, f ports.DeliveryFilter, p ports.Page) ([]domain.WebhookDelivery, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.WebhookDelivery
	for i := len(r.deliveries) - 1; i >= 0; i-- {
		d := r.deliveries[i]
		if f.EndpointID != nil && d.EndpointID != *f.EndpointID {
			continue
		}
		if f.EventID != nil && d.EventID != *f.EventID {
			continue
		}
		if f.EventType != nil && d.EventType != *f.EventType {
			continue
		}
		if f.Status != nil && string(d.Status) != *f.Status {
			continue
		}
		matched = append(matched, d)
	}
	return pageSlice(matched, func(x domain.WebhookDelivery) string { return x.ID }, p)
}

func (r *memWebhookRepo) CreateDeadLetter(_ context.Context, dl *domain.WebhookDeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *dl
	r.deadLetters[dl.ID] = &cp
	r.dlOrder = append(r.dlOrder, dl.ID)
	return nil
}

func (r *memWebhookRepo) GetDeadLetter(_ context.Context, id string) (*domain.WebhookDeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.deadLetters[id]
	if !ok {
		return nil, nil
	}
	cp := *dl
	return &cp, nil
}

func (r *memWebhookRepo) UpdateDeadLetter(_ context.Context, dl *domain.WebhookDeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *dl
	r.deadLetters[dl.ID] = &cp
	return nil
}

func (r *memWebhookRepo) ListDeadLetters(_ context.Context, f ports.DeadLetterFilter, p ports.Page) ([]domain.WebhookDeadLetter, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.WebhookDeadLetter
	for i := len(r.dlOrder) - 1; i >= 0; i-- {
		dl := r.deadLetters[r.dlOrder[i]]
		if f.Status != nil && string(dl.Status) != *f.Status {
			continue
		}
		if f.EventType != nil && dl.EventType != *f.EventType {
			continue
		}
		if f.EndpointID != nil && dl.EndpointID != *f.EndpointID {
			continue
		}
		matched = append(matched, *dl)
	}
	return pageSlice(matched, func(x domain.WebhookDeadLetter) string { return x.ID }, p)
}

var _ ports.WebhookRepository = (*memWebhookRepo)(nil)
