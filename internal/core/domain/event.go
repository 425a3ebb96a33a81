package domain

import "time"

// EventType discriminates the lifecycle events emitted by the orchestrator.
type EventType string

const (
	EventIntentCreated        EventType = "payment_intent.created"
	EventIntentProcessing     EventType = "payment_intent.processing"
	EventIntentRequiresAction EventType = "payment_intent.requires_action"
	EventIntentSucceeded      EventType = "payment_intent.succeeded"
	EventIntentFailed         EventType = "payment_intent.failed"
	EventIntentCanceled       EventType = "payment_intent.canceled"
	EventRefundSucceeded      EventType = "refund.succeeded"
	EventRefundFailed         EventType = "refund.failed"
	EventChargebackOpened     EventType = "chargeback.opened"
	EventChargebackWon        EventType = "chargeback.won"
	EventChargebackLost       EventType = "chargeback.lost"
)

const (
	// EventAPIVersion is the wire contract version carried by every event.
	EventAPIVersion = "2024-06-01"

	// EventSource identifies this service as the event producer.
	EventSource = "pmc-orchestrator"

	// EventVersion is the envelope schema version.
	EventVersion = 1
)

// Event is the envelope published on every externally-visible state change.
// Produced exactly once per state change, delivered at-least-once, and
// deduplicated downstream by (consumer_group, event id).
type Event struct {
	ID           string         `json:"id"`
	APIVersion   string         `json:"api_version"`
	Source       string         `json:"source"`
	EventVersion int            `json:"event_version"`
	Type         EventType      `json:"type"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Data         map[string]any `json:"data"`
}

// NewEvent builds an event envelope with the standard source fields.
func NewEvent(typ EventType, occurredAt time.Time, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:           NewID(PrefixEvent),
		APIVersion:   EventAPIVersion,
		Source:       EventSource,
		EventVersion: EventVersion,
		Type:         typ,
		OccurredAt:   occurredAt,
		Data:         data,
	}
}
