package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to the HTTP error envelope.
// Code is a stable snake_case identifier that callers may branch on.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication ----

func ErrMissingAPIKey() *AppError {
	return New("missing_api_key", "Authorization header with a bearer API key is required", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("invalid_api_key", "The provided API key is not valid", http.StatusUnauthorized)
}

// ---- Throttling ----

func ErrRateLimitExceeded() *AppError {
	return New("rate_limit_exceeded", "Too many requests, retry later", http.StatusTooManyRequests)
}

// ---- Request shape ----

func ErrInvalidRequestBody(detail string) *AppError {
	return New("invalid_request_body", detail, http.StatusBadRequest)
}

func ErrMissingIdempotencyKey() *AppError {
	return New("missing_idempotency_key", "Idempotency-Key header is required on write requests", http.StatusBadRequest)
}

func ErrInvalidIdempotencyKey() *AppError {
	return New("invalid_idempotency_key", "Idempotency-Key must match ^[A-Za-z0-9._:-]+$ within the configured length", http.StatusUnprocessableEntity)
}

func ErrInvalidPathParameter(name string) *AppError {
	return New("invalid_path_parameter", fmt.Sprintf("Path parameter %q is malformed", name), http.StatusBadRequest)
}

// ErrInvalidField reports a validator failure as invalid_<field> (422).
func ErrInvalidField(field, detail string) *AppError {
	return New("invalid_"+field, detail, http.StatusUnprocessableEntity)
}

func ErrInvalidCursor() *AppError {
	return New("invalid_cursor", "The pagination cursor is malformed, has an unknown signature, or is outside the current result window", http.StatusUnprocessableEntity)
}

func ErrInvalidIfMatch() *AppError {
	return New("invalid_if_match", "If-Match must be * or a quoted entity tag", http.StatusUnprocessableEntity)
}

func ErrInvalidReplayBatch(detail string) *AppError {
	return New("invalid_replay_batch", detail, http.StatusUnprocessableEntity)
}

// ---- Idempotency & concurrency ----

func ErrIdempotencyConflict() *AppError {
	return New("idempotency_conflict", "Idempotency key reused with a different request payload", http.StatusConflict)
}

func ErrPreconditionFailed() *AppError {
	return New("precondition_failed", "The If-Match entity tag does not match the current resource", http.StatusPreconditionFailed)
}

// ---- State ----

func ErrInvalidStateTransition(from, to string) *AppError {
	return New("invalid_state_transition", fmt.Sprintf("Cannot transition payment intent from %s to %s", from, to), http.StatusConflict)
}

func ErrInvalidPaymentState(op, status string) *AppError {
	return New("invalid_payment_state", fmt.Sprintf("Cannot %s a payment intent in status %s", op, status), http.StatusConflict)
}

func ErrInvalidChargebackState(status string) *AppError {
	return New("invalid_chargeback_state", fmt.Sprintf("Chargeback in status %s cannot be resolved", status), http.StatusConflict)
}

func ErrInvalidCaptureMethod() *AppError {
	return New("invalid_capture_method", "Capture is only valid for manual-capture payment intents", http.StatusConflict)
}

func ErrMissingProviderReference() *AppError {
	return New("missing_provider_reference", "The payment intent has no provider reference from a successful authorization", http.StatusConflict)
}

func ErrDeadLetterAlreadyReplayed() *AppError {
	return New("dead_letter_already_replayed", "This dead-letter has already been replayed", http.StatusConflict)
}

func ErrWebhookEndpointDisabled() *AppError {
	return New("webhook_endpoint_disabled", "The target webhook endpoint is disabled", http.StatusConflict)
}

// ---- Business constraints ----

func ErrAmountExceedsCapturable() *AppError {
	return New("amount_exceeds_capturable", "Capture amount exceeds the remaining authorized amount", http.StatusUnprocessableEntity)
}

func ErrAmountExceedsRefundable() *AppError {
	return New("amount_exceeds_refundable", "Refund amount exceeds the remaining captured amount", http.StatusUnprocessableEntity)
}

func ErrAmountExceedsDisputable() *AppError {
	return New("amount_exceeds_disputable", "Chargeback amount exceeds the disputable balance", http.StatusUnprocessableEntity)
}

func ErrRefundNotAllowed(detail string) *AppError {
	return New("refund_not_allowed", detail, http.StatusUnprocessableEntity)
}

// ---- Resources ----

func ErrNotFound(resource string) *AppError {
	return New("resource_not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ---- Capacity ----

func ErrProviderNotAvailable(method string) *AppError {
	return New("provider_not_available", fmt.Sprintf("No configured provider supports payment method %s", method), http.StatusUnprocessableEntity)
}

func ErrProviderCircuitOpen(method string) *AppError {
	return New("provider_circuit_open", fmt.Sprintf("All providers for payment method %s are temporarily unavailable", method), http.StatusServiceUnavailable)
}

// ---- Internal ----

func ErrInvalidRuntimeConfig(detail string) *AppError {
	return New("invalid_runtime_config", detail, http.StatusInternalServerError)
}

// InternalError wraps an internal error as internal_server_error.
func InternalError(err error) *AppError {
	return Wrap("internal_server_error", "Internal server error", http.StatusInternalServerError, err)
}
