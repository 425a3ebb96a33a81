package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// WebhookEndpoint is a subscriber URL for outbound event notifications.
// An empty Events list subscribes the endpoint to every event type.
type WebhookEndpoint struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"-"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Accepts reports whether the endpoint subscribes to the given event type.
func (e *WebhookEndpoint) Accepts(typ EventType) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, t := range e.Events {
		if t == string(typ) {
			return true
		}
	}
	return false
}

// ETag derives the endpoint's concurrency token: the first 24 hex chars of
// a SHA-256 over the canonical JSON of its stable fields.
func (e *WebhookEndpoint) ETag() string {
	stable := struct {
		ID      string   `json:"id"`
		URL     string   `json:"url"`
		Events  []string `json:"events"`
		Enabled bool     `json:"enabled"`
		Secret  string   `json:"secret"`
	}{e.ID, e.URL, e.Events, e.Enabled, e.Secret}
	b, _ := json.Marshal(stable)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:24]
}

// DeliveryStatus is the outcome of a single webhook attempt.
type DeliveryStatus string

const (
	DeliverySucceeded DeliveryStatus = "succeeded"
	DeliveryFailed    DeliveryStatus = "failed"
)

// WebhookDelivery is the per-attempt delivery log.
type WebhookDelivery struct {
	ID             string         `json:"id"`
	EndpointID     string         `json:"endpoint_id"`
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	Attempt        int            `json:"attempt"`
	Status         DeliveryStatus `json:"status"`
	ResponseStatus *int           `json:"response_status,omitempty"`
	ErrorCode      *string        `json:"error_code,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
}

// DeadLetterStatus tracks whether a dead-letter has been replayed.
type DeadLetterStatus string

const (
	DeadLetterPending  DeadLetterStatus = "pending"
	DeadLetterReplayed DeadLetterStatus = "replayed"
)

// FailureReason classifies why a delivery was dead-lettered.
type FailureReason string

const (
	FailurePermanent    FailureReason = "permanent_failure"
	FailureMaxAttempts  FailureReason = "max_attempts_exhausted"
)

// WebhookDeadLetter is a permanently stored undeliverable webhook. The
// original event payload is embedded so the delivery can be replayed.
type WebhookDeadLetter struct {
	ID             string           `json:"id"`
	EndpointID     string           `json:"endpoint_id"`
	EndpointURL    string           `json:"endpoint_url"`
	EventID        string           `json:"event_id"`
	EventType      string           `json:"event_type"`
	Attempts       int              `json:"attempts"`
	Status         DeadLetterStatus `json:"status"`
	ReplayCount    int              `json:"replay_count"`
	FailureReason  FailureReason    `json:"failure_reason"`
	ResponseStatus *int             `json:"response_status,omitempty"`
	ErrorCode      *string          `json:"error_code,omitempty"`
	Payload        json.RawMessage  `json:"payload"`
	FailedAt       time.Time        `json:"failed_at"`
	LastReplayedAt *time.Time       `json:"last_replayed_at,omitempty"`
}
