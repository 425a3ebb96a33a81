package dto

import (
	"pmc-orchestrator/internal/core/domain"
)

// CustomerInput identifies the paying customer.
type CustomerInput struct {
	ID string `json:"id"`
}

// PaymentMethodInput carries the tokenized instrument.
type PaymentMethodInput struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// CreateIntentRequest is the body of POST /v1/payment-intents.
type CreateIntentRequest struct {
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency"`
	Customer      CustomerInput      `json:"customer"`
	PaymentMethod PaymentMethodInput `json:"payment_method"`
	CaptureMethod string             `json:"capture_method"`
}

// CaptureRequest is the body of POST /v1/payment-intents/{id}/capture.
type CaptureRequest struct {
	Amount int64 `json:"amount"`
}

// CreateRefundRequest is the body of POST /v1/refunds.
type CreateRefundRequest struct {
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          int64   `json:"amount"`
	Reason          *string `json:"reason,omitempty"`
}

// CreateChargebackRequest is the body of POST /v1/chargebacks.
type CreateChargebackRequest struct {
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          int64   `json:"amount"`
	Reason          string  `json:"reason"`
	EvidenceURL     *string `json:"evidence_url,omitempty"`
}

// ResolveChargebackRequest is the body of POST /v1/chargebacks/{id}/resolve.
type ResolveChargebackRequest struct {
	Status string `json:"status"`
}

// CreateEndpointRequest is the body of POST /v1/webhook-endpoints.
type CreateEndpointRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
}

// UpdateEndpointRequest is the body of PATCH /v1/webhook-endpoints/{id}.
// Nil fields are left unchanged.
type UpdateEndpointRequest struct {
	URL     *string   `json:"url,omitempty"`
	Events  *[]string `json:"events,omitempty"`
	Enabled *bool     `json:"enabled,omitempty"`
}

// ReplayBatchRequest is the body of POST /v1/webhook-dead-letters/replay-batch.
type ReplayBatchRequest struct {
	Limit      int     `json:"limit"`
	Status     *string `json:"status,omitempty"`
	EventType  *string `json:"event_type,omitempty"`
	EndpointID *string `json:"endpoint_id,omitempty"`
}

// EndpointResponse is the webhook endpoint wire shape. Secret is present
// only on create and rotate-secret responses.
type EndpointResponse struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Enabled   bool     `json:"enabled"`
	Secret    string   `json:"secret,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// ToEndpointResponse converts an endpoint; withSecret discloses the
// signing secret.
func ToEndpointResponse(e *domain.WebhookEndpoint, withSecret bool) EndpointResponse {
	resp := EndpointResponse{
		ID:        e.ID,
		URL:       e.URL,
		Events:    e.Events,
		Enabled:   e.Enabled,
		CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if resp.Events == nil {
		resp.Events = []string{}
	}
	if withSecret {
		resp.Secret = e.Secret
	}
	return resp
}
