package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmc-orchestrator/pkg/apperror"
)

func validIntentRequest() CreateIntentRequest {
	return CreateIntentRequest{
		Amount:        10990,
		Currency:      "BRL",
		Customer:      CustomerInput{ID: "cus_123"},
		PaymentMethod: PaymentMethodInput{Type: "card", Token: "tok_test_visa"},
		CaptureMethod: "automatic",
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestCreateIntentRequestValidate(t *testing.T) {
	valid := validIntentRequest()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(*CreateIntentRequest)
		wantCode string
	}{
		{"zero amount", func(r *CreateIntentRequest) { r.Amount = 0 }, "invalid_amount"},
		{"negative amount", func(r *CreateIntentRequest) { r.Amount = -5 }, "invalid_amount"},
		{"lowercase currency", func(r *CreateIntentRequest) { r.Currency = "brl" }, "invalid_currency"},
		{"missing customer", func(r *CreateIntentRequest) { r.Customer.ID = "" }, "invalid_customer"},
		{"unknown method", func(r *CreateIntentRequest) { r.PaymentMethod.Type = "cash" }, "invalid_payment_method"},
		{"missing token", func(r *CreateIntentRequest) { r.PaymentMethod.Token = "" }, "invalid_payment_method"},
		{"bad capture method", func(r *CreateIntentRequest) { r.CaptureMethod = "deferred" }, "invalid_capture_method"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validIntentRequest()
			tc.mutate(&req)
			assert.Equal(t, tc.wantCode, errCode(t, req.Validate()))
		})
	}
}

func TestCreateRefundRequestValidate(t *testing.T) {
	ok := CreateRefundRequest{PaymentIntentID: "pi_1", Amount: 100}
	require.NoError(t, ok.Validate())

	reason := "requested_by_customer"
	ok.Reason = &reason
	require.NoError(t, ok.Validate())

	bad := CreateRefundRequest{PaymentIntentID: "", Amount: 100}
	assert.Equal(t, "invalid_payment_intent_id", errCode(t, bad.Validate()))

	bogus := "because"
	withReason := CreateRefundRequest{PaymentIntentID: "pi_1", Amount: 100, Reason: &bogus}
	assert.Equal(t, "invalid_reason", errCode(t, withReason.Validate()))
}

func TestCreateChargebackRequestValidate(t *testing.T) {
	ok := CreateChargebackRequest{PaymentIntentID: "pi_1", Amount: 100, Reason: "fraud"}
	require.NoError(t, ok.Validate())

	badReason := ok
	badReason.Reason = "buyer_remorse"
	assert.Equal(t, "invalid_reason", errCode(t, badReason.Validate()))

	ftp := "ftp://evidence.example.com/file"
	badURL := ok
	badURL.EvidenceURL = &ftp
	assert.Equal(t, "invalid_evidence_url", errCode(t, badURL.Validate()))
}

func TestResolveChargebackRequestValidate(t *testing.T) {
	for _, status := range []string{"under_review", "won", "lost"} {
		assert.NoError(t, (&ResolveChargebackRequest{Status: status}).Validate())
	}
	assert.Equal(t, "invalid_status", errCode(t, (&ResolveChargebackRequest{Status: "open"}).Validate()))
}

func TestEndpointRequestValidate(t *testing.T) {
	ok := CreateEndpointRequest{URL: "https://example.com/hook", Events: []string{"payment_intent.succeeded"}}
	require.NoError(t, ok.Validate())

	assert.Equal(t, "invalid_url", errCode(t, (&CreateEndpointRequest{URL: "not-a-url"}).Validate()))
	assert.Equal(t, "invalid_events",
		errCode(t, (&CreateEndpointRequest{URL: "https://example.com", Events: []string{"payment.exploded"}}).Validate()))

	empty := UpdateEndpointRequest{}
	assert.Equal(t, "invalid_request_body", errCode(t, empty.Validate()))
}

func TestReplayBatchRequestValidate(t *testing.T) {
	require.NoError(t, (&ReplayBatchRequest{Limit: 10}).Validate())

	assert.Equal(t, "invalid_replay_batch", errCode(t, (&ReplayBatchRequest{Limit: 0}).Validate()))
	assert.Equal(t, "invalid_replay_batch", errCode(t, (&ReplayBatchRequest{Limit: 5001}).Validate()))

	bad := "exploded"
	assert.Equal(t, "invalid_replay_batch", errCode(t, (&ReplayBatchRequest{Limit: 1, EventType: &bad}).Validate()))
}
