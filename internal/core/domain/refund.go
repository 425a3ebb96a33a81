package domain

import "time"

// RefundStatus is the lifecycle state of a refund.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// RefundReason enumerates the accepted refund reasons.
type RefundReason string

const (
	RefundReasonRequestedByCustomer RefundReason = "requested_by_customer"
	RefundReasonDuplicate           RefundReason = "duplicate"
	RefundReasonFraud               RefundReason = "fraud"
	RefundReasonOther               RefundReason = "other"
)

// ValidRefundReason reports whether s is a known refund reason.
func ValidRefundReason(s string) bool {
	switch RefundReason(s) {
	case RefundReasonRequestedByCustomer, RefundReasonDuplicate, RefundReasonFraud, RefundReasonOther:
		return true
	}
	return false
}

// Refund records a single (attempted) return of captured funds.
type Refund struct {
	ID              string        `json:"id"`
	PaymentIntentID string        `json:"payment_intent_id"`
	Amount          int64         `json:"amount"`
	Status          RefundStatus  `json:"status"`
	Reason          *RefundReason `json:"reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}
