package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	e := ErrIdempotencyConflict()
	assert.Contains(t, e.Error(), "idempotency_conflict")

	wrapped := Wrap("internal_server_error", "boom", http.StatusInternalServerError, errors.New("pg down"))
	assert.Contains(t, wrapped.Error(), "pg down")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	e := InternalError(inner)
	assert.True(t, errors.Is(e, inner))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ErrMissingAPIKey(), http.StatusUnauthorized},
		{ErrInvalidAPIKey(), http.StatusUnauthorized},
		{ErrRateLimitExceeded(), http.StatusTooManyRequests},
		{ErrMissingIdempotencyKey(), http.StatusBadRequest},
		{ErrInvalidIdempotencyKey(), http.StatusUnprocessableEntity},
		{ErrInvalidCursor(), http.StatusUnprocessableEntity},
		{ErrInvalidIfMatch(), http.StatusUnprocessableEntity},
		{ErrIdempotencyConflict(), http.StatusConflict},
		{ErrPreconditionFailed(), http.StatusPreconditionFailed},
		{ErrInvalidStateTransition("processing", "canceled"), http.StatusConflict},
		{ErrInvalidPaymentState("capture", "succeeded"), http.StatusConflict},
		{ErrInvalidChargebackState("won"), http.StatusConflict},
		{ErrInvalidCaptureMethod(), http.StatusConflict},
		{ErrMissingProviderReference(), http.StatusConflict},
		{ErrDeadLetterAlreadyReplayed(), http.StatusConflict},
		{ErrWebhookEndpointDisabled(), http.StatusConflict},
		{ErrAmountExceedsCapturable(), http.StatusUnprocessableEntity},
		{ErrAmountExceedsRefundable(), http.StatusUnprocessableEntity},
		{ErrAmountExceedsDisputable(), http.StatusUnprocessableEntity},
		{ErrNotFound("payment intent"), http.StatusNotFound},
		{ErrProviderNotAvailable("card"), http.StatusUnprocessableEntity},
		{ErrProviderCircuitOpen("card"), http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.status, tc.err.HTTPStatus, tc.err.Code)
	}
}

func TestErrInvalidField_CodeShape(t *testing.T) {
	e := ErrInvalidField("currency", "currency must be a 3-letter ISO code")
	assert.Equal(t, "invalid_currency", e.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.HTTPStatus)
}
