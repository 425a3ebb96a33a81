package domain

import "time"

// LedgerEntryType classifies a money movement.
type LedgerEntryType string

const (
	LedgerEntryAuthorization LedgerEntryType = "authorization"
	LedgerEntryCapture       LedgerEntryType = "capture"
	LedgerEntryRefund        LedgerEntryType = "refund"
	LedgerEntryChargeback    LedgerEntryType = "chargeback"
)

// LedgerDirection is the movement direction relative to the platform.
type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

// LedgerEntry is an append-only audit record of a money movement.
// Entries are never mutated or deleted.
type LedgerEntry struct {
	ID                string          `json:"id"`
	PaymentIntentID   string          `json:"payment_intent_id"`
	RefundID          *string         `json:"refund_id,omitempty"`
	EntryType         LedgerEntryType `json:"entry_type"`
	Direction         LedgerDirection `json:"direction"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	Provider          string          `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ReconciliationSummary aggregates the ledger into settlement totals.
type ReconciliationSummary struct {
	Currency         string `json:"currency,omitempty"`
	CapturedTotal    int64  `json:"captured_total"`
	RefundedTotal    int64  `json:"refunded_total"`
	ChargebackTotal  int64  `json:"chargeback_total"`
	NetSettledTotal  int64  `json:"net_settled_total"`
	EntryCount       int64  `json:"entry_count"`
}

// Apply folds one ledger entry into the summary. Capture credits add,
// capture debits subtract; refunds and chargebacks are the inverse.
func (s *ReconciliationSummary) Apply(e LedgerEntry) {
	sign := int64(1)
	switch e.EntryType {
	case LedgerEntryCapture:
		if e.Direction == LedgerDebit {
			sign = -1
		}
		s.CapturedTotal += sign * e.Amount
	case LedgerEntryRefund:
		if e.Direction == LedgerCredit {
			sign = -1
		}
		s.RefundedTotal += sign * e.Amount
	case LedgerEntryChargeback:
		if e.Direction == LedgerCredit {
			sign = -1
		}
		s.ChargebackTotal += sign * e.Amount
	}
	s.NetSettledTotal = s.CapturedTotal - s.RefundedTotal - s.ChargebackTotal
	s.EntryCount++
}
