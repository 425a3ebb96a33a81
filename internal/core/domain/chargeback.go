package domain

import "time"

// ChargebackStatus is the dispute lifecycle state.
type ChargebackStatus string

const (
	ChargebackStatusOpen        ChargebackStatus = "open"
	ChargebackStatusUnderReview ChargebackStatus = "under_review"
	ChargebackStatusWon         ChargebackStatus = "won"
	ChargebackStatusLost        ChargebackStatus = "lost"
)

// ChargebackReason enumerates the accepted dispute reasons.
type ChargebackReason string

const (
	ChargebackReasonFraud              ChargebackReason = "fraud"
	ChargebackReasonDispute            ChargebackReason = "chargeback_dispute"
	ChargebackReasonServiceNotReceived ChargebackReason = "service_not_received"
	ChargebackReasonOther              ChargebackReason = "other"
)

// ValidChargebackReason reports whether s is a known chargeback reason.
func ValidChargebackReason(s string) bool {
	switch ChargebackReason(s) {
	case ChargebackReasonFraud, ChargebackReasonDispute, ChargebackReasonServiceNotReceived, ChargebackReasonOther:
		return true
	}
	return false
}

// ValidChargebackResolution reports whether s is a status a chargeback can
// be resolved to.
func ValidChargebackResolution(s string) bool {
	switch ChargebackStatus(s) {
	case ChargebackStatusUnderReview, ChargebackStatusWon, ChargebackStatusLost:
		return true
	}
	return false
}

// Chargeback represents a dispute opened against a captured payment.
type Chargeback struct {
	ID              string           `json:"id"`
	PaymentIntentID string           `json:"payment_intent_id"`
	Amount          int64            `json:"amount"`
	Reason          ChargebackReason `json:"reason"`
	Status          ChargebackStatus `json:"status"`
	EvidenceURL     *string          `json:"evidence_url,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsTerminal returns true once the dispute has been decided.
func (c *Chargeback) IsTerminal() bool {
	return c.Status == ChargebackStatusWon || c.Status == ChargebackStatusLost
}

// Reserved reports whether this chargeback's amount still counts against
// the intent's disputable balance.
func (c *Chargeback) Reserved() bool {
	return c.Status == ChargebackStatusOpen ||
		c.Status == ChargebackStatusUnderReview ||
		c.Status == ChargebackStatusLost
}
