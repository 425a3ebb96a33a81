package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to IntentStatus
		want     bool
	}{
		{IntentStatusRequiresConfirmation, IntentStatusProcessing, true},
		{IntentStatusRequiresConfirmation, IntentStatusCanceled, true},
		{IntentStatusRequiresConfirmation, IntentStatusSucceeded, false},
		{IntentStatusProcessing, IntentStatusRequiresAction, true},
		{IntentStatusProcessing, IntentStatusSucceeded, true},
		{IntentStatusProcessing, IntentStatusFailed, true},
		{IntentStatusProcessing, IntentStatusCanceled, false},
		{IntentStatusRequiresAction, IntentStatusProcessing, true},
		{IntentStatusRequiresAction, IntentStatusFailed, true},
		{IntentStatusRequiresAction, IntentStatusCanceled, true},
		{IntentStatusRequiresAction, IntentStatusSucceeded, false},
		{IntentStatusSucceeded, IntentStatusProcessing, false},
		{IntentStatusFailed, IntentStatusProcessing, false},
		{IntentStatusCanceled, IntentStatusRequiresConfirmation, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPaymentIntent_DerivedAmounts(t *testing.T) {
	p := &PaymentIntent{
		Amount:           10990,
		AuthorizedAmount: 10990,
		CapturedAmount:   8000,
		RefundedAmount:   3000,
	}
	assert.Equal(t, int64(5000), p.AmountRefundable())
	assert.Equal(t, int64(2990), p.AmountCapturable())

	// Refunded can never exceed captured, but the accessor still clamps.
	p.RefundedAmount = 9000
	assert.Equal(t, int64(0), p.AmountRefundable())
}

func TestPaymentIntent_IsTerminal(t *testing.T) {
	for _, s := range []IntentStatus{IntentStatusSucceeded, IntentStatusFailed, IntentStatusCanceled} {
		assert.True(t, (&PaymentIntent{Status: s}).IsTerminal(), string(s))
	}
	for _, s := range []IntentStatus{IntentStatusRequiresConfirmation, IntentStatusProcessing, IntentStatusRequiresAction} {
		assert.False(t, (&PaymentIntent{Status: s}).IsTerminal(), string(s))
	}
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	a := Fingerprint([]byte(`{"amount":10990,"currency":"BRL","customer":{"id":"cus_123"}}`))
	b := Fingerprint([]byte(`{"customer":{"id":"cus_123"},"currency":"BRL","amount":10990}`))
	assert.Equal(t, a, b)

	c := Fingerprint([]byte(`{"amount":9999,"currency":"BRL","customer":{"id":"cus_123"}}`))
	assert.NotEqual(t, a, c)
}

func TestFingerprint_EmptyBody(t *testing.T) {
	assert.Equal(t, Fingerprint(nil), Fingerprint([]byte{}))
}

func TestIdempotencyRecord_Expired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &IdempotencyRecord{CreatedAt: now.Add(-2 * time.Hour)}
	assert.True(t, rec.Expired(time.Hour, now))
	assert.False(t, rec.Expired(3*time.Hour, now))
}

func TestWebhookEndpoint_Accepts(t *testing.T) {
	all := &WebhookEndpoint{Events: nil}
	assert.True(t, all.Accepts(EventIntentSucceeded))

	some := &WebhookEndpoint{Events: []string{"refund.succeeded", "refund.failed"}}
	assert.True(t, some.Accepts(EventRefundFailed))
	assert.False(t, some.Accepts(EventIntentSucceeded))
}

func TestWebhookEndpoint_ETag(t *testing.T) {
	e := &WebhookEndpoint{ID: "we_1", URL: "https://example.com/hook", Enabled: true, Secret: "whsec_a"}
	tag := e.ETag()
	require.Len(t, tag, 24)
	assert.Equal(t, tag, e.ETag(), "stable across calls")

	e.Secret = "whsec_b"
	assert.NotEqual(t, tag, e.ETag(), "secret rotation changes the tag")
}

func TestChargeback_Reserved(t *testing.T) {
	for status, want := range map[ChargebackStatus]bool{
		ChargebackStatusOpen:        true,
		ChargebackStatusUnderReview: true,
		ChargebackStatusLost:        true,
		ChargebackStatusWon:         false,
	} {
		assert.Equal(t, want, (&Chargeback{Status: status}).Reserved(), string(status))
	}
}

func TestReconciliationSummary_Apply(t *testing.T) {
	var s ReconciliationSummary
	s.Apply(LedgerEntry{EntryType: LedgerEntryCapture, Direction: LedgerCredit, Amount: 10000})
	s.Apply(LedgerEntry{EntryType: LedgerEntryRefund, Direction: LedgerDebit, Amount: 2500})
	s.Apply(LedgerEntry{EntryType: LedgerEntryChargeback, Direction: LedgerDebit, Amount: 1000})
	s.Apply(LedgerEntry{EntryType: LedgerEntryAuthorization, Direction: LedgerCredit, Amount: 10000})

	assert.Equal(t, int64(10000), s.CapturedTotal)
	assert.Equal(t, int64(2500), s.RefundedTotal)
	assert.Equal(t, int64(1000), s.ChargebackTotal)
	assert.Equal(t, int64(6500), s.NetSettledTotal)
	assert.Equal(t, int64(4), s.EntryCount)
}

func TestNewID_Shape(t *testing.T) {
	id := NewID(PrefixPaymentIntent)
	require.True(t, strings.HasPrefix(id, "pi_"))
	assert.Len(t, id, 3+32)
	assert.True(t, IdempotencyKeyPattern.MatchString(id))
}
