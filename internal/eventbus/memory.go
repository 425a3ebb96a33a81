package eventbus

import (
	"context"
	"sort"
	"sync"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"

	"github.com/rs/zerolog"
)

// Memory is the single-process bus: Publish appends the event to an
// in-memory log and invokes subscribers synchronously in registration
// order. Handler errors are logged, not propagated, so a broken consumer
// never fails the originating write.
type Memory struct {
	mu        sync.RWMutex
	published []domain.Event
	handlers  []ports.EventHandler
	log       zerolog.Logger
}

// NewMemory creates an empty in-memory bus.
func NewMemory(log zerolog.Logger) *Memory {
	return &Memory{log: log}
}

// Publish records the event and fans it out synchronously.
func (m *Memory) Publish(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	handlers := append([]ports.EventHandler{}, m.handlers...)
	m.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			m.log.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Msg("event handler failed")
		}
	}
	return nil
}

// Subscribe registers a handler for all subsequently published events.
func (m *Memory) Subscribe(handler ports.EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// ListPublishedEvents filters and keyset-pages the in-memory log in
// (occurred_at DESC, id DESC) order.
func (m *Memory) ListPublishedEvents(_ context.Context, f ports.EventFilter, p ports.Page) ([]domain.Event, bool, error) {
	m.mu.RLock()
	matched := make([]domain.Event, 0, len(m.published))
	for _, ev := range m.published {
		if MatchEvent(f, ev) {
			matched = append(matched, ev)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start := 0
	if p.AfterID != "" {
		found := false
		for i, ev := range matched {
			if ev.ID == p.AfterID {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, false, ports.ErrCursorOutOfWindow
		}
	}

	rest := matched[start:]
	hasMore := len(rest) > p.Limit
	if hasMore {
		rest = rest[:p.Limit]
	}
	return rest, hasMore, nil
}

// MatchEvent applies an EventFilter to one event. The payment intent id is
// read from the payload's payment_intent_id key.
func MatchEvent(f ports.EventFilter, ev domain.Event) bool {
	if f.EventType != nil && string(ev.Type) != *f.EventType {
		return false
	}
	if f.PaymentIntentID != nil {
		id, _ := ev.Data["payment_intent_id"].(string)
		if id != *f.PaymentIntentID {
			return false
		}
	}
	if f.OccurredFrom != nil && ev.OccurredAt.Before(*f.OccurredFrom) {
		return false
	}
	if f.OccurredTo != nil && ev.OccurredAt.After(*f.OccurredTo) {
		return false
	}
	return true
}
