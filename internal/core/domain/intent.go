package domain

import (
	"encoding/json"
	"time"
)

// IntentStatus is the lifecycle state of a payment intent.
type IntentStatus string

const (
	IntentStatusRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentStatusProcessing           IntentStatus = "processing"
	IntentStatusRequiresAction       IntentStatus = "requires_action"
	IntentStatusSucceeded            IntentStatus = "succeeded"
	IntentStatusFailed               IntentStatus = "failed"
	IntentStatusCanceled             IntentStatus = "canceled"
)

// CaptureMethod controls whether capture happens on confirm or explicitly.
type CaptureMethod string

const (
	CaptureAutomatic CaptureMethod = "automatic"
	CaptureManual    CaptureMethod = "manual"
)

// PaymentMethodType enumerates supported payment instruments.
type PaymentMethodType string

const (
	MethodCard         PaymentMethodType = "card"
	MethodPix          PaymentMethodType = "pix"
	MethodBoleto       PaymentMethodType = "boleto"
	MethodWallet       PaymentMethodType = "wallet"
	MethodBankTransfer PaymentMethodType = "bank_transfer"
)

// ValidMethod reports whether s is a known payment method type.
func ValidMethod(s string) bool {
	switch PaymentMethodType(s) {
	case MethodCard, MethodPix, MethodBoleto, MethodWallet, MethodBankTransfer:
		return true
	}
	return false
}

// transitions is the permitted state graph. Terminal states have no entries.
var transitions = map[IntentStatus][]IntentStatus{
	IntentStatusRequiresConfirmation: {IntentStatusProcessing, IntentStatusCanceled},
	IntentStatusProcessing:           {IntentStatusRequiresAction, IntentStatusSucceeded, IntentStatusFailed},
	IntentStatusRequiresAction:       {IntentStatusProcessing, IntentStatusFailed, IntentStatusCanceled},
}

// CanTransition reports whether from → to is a permitted transition.
func CanTransition(from, to IntentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentIntent is the root aggregate of the payment lifecycle. Amounts are
// integers in the currency's minor units.
type PaymentIntent struct {
	ID                 string            `json:"id"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	Status             IntentStatus      `json:"status"`
	CaptureMethod      CaptureMethod     `json:"capture_method"`
	CustomerID         string            `json:"customer_id"`
	PaymentMethodType  PaymentMethodType `json:"payment_method_type"`
	PaymentMethodToken string            `json:"-"`
	AuthorizedAmount   int64             `json:"authorized_amount"`
	CapturedAmount     int64             `json:"captured_amount"`
	RefundedAmount     int64             `json:"refunded_amount"`
	Provider           *string           `json:"provider"`
	ProviderReference  *string           `json:"provider_reference"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// IsTerminal returns true once the intent reached a final status.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == IntentStatusSucceeded ||
		p.Status == IntentStatusFailed ||
		p.Status == IntentStatusCanceled
}

// AmountRefundable is the captured amount not yet refunded.
func (p *PaymentIntent) AmountRefundable() int64 {
	if r := p.CapturedAmount - p.RefundedAmount; r > 0 {
		return r
	}
	return 0
}

// MarshalJSON adds the derived balances to the wire shape, so responses
// and stored idempotency records agree on one serialization.
func (p PaymentIntent) MarshalJSON() ([]byte, error) {
	type alias PaymentIntent
	return json.Marshal(struct {
		alias
		AmountRefundable int64 `json:"amount_refundable"`
		AmountCapturable int64 `json:"amount_capturable"`
	}{alias(p), p.AmountRefundable(), p.AmountCapturable()})
}

// AmountCapturable is the authorized amount not yet captured.
func (p *PaymentIntent) AmountCapturable() int64 {
	if c := p.AuthorizedAmount - p.CapturedAmount; c > 0 {
		return c
	}
	return 0
}
