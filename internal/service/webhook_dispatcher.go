package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"pmc-orchestrator/config"
	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/metrics"
)

// Signed delivery headers. Receivers verify X-PMC-Signature against
// HMAC-SHA256(secret, "<X-PMC-Timestamp>.<raw body>").
const (
	HeaderWebhookEvent          = "X-PMC-Event"
	HeaderWebhookEventID        = "X-PMC-Event-Id"
	HeaderWebhookTimestamp      = "X-PMC-Timestamp"
	HeaderWebhookSignature      = "X-PMC-Signature"
	HeaderWebhookSignatureKeyID = "X-PMC-Signature-Key-Id"
)

// WebhookDispatcher fans published events out to subscribed endpoints.
// Each endpoint gets up to MaxAttempts signed POSTs; every attempt is
// logged as a WebhookDelivery row, and an endpoint that never accepts the
// event is dead-lettered with the embedded payload so it can be replayed.
type WebhookDispatcher struct {
	repo        ports.WebhookRepository
	client      *http.Client
	maxAttempts int
	timeout     time.Duration
	clock       ports.Clock
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher. A nil client falls back to a
// default http.Client; per-attempt deadlines come from cfg.Timeout.
func NewWebhookDispatcher(
	repo ports.WebhookRepository,
	client *http.Client,
	cfg config.WebhookConfig,
	clock ports.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookDispatcher{
		repo:        repo,
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.Timeout,
		clock:       clock,
		metrics:     m,
		log:         log.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

// Handle implements ports.EventHandler. A repository error is returned so
// the message is redelivered; delivery failures themselves never bubble up
// — they end in the dead-letter queue instead.
func (d *WebhookDispatcher) Handle(ctx context.Context, event domain.Event) error {
	endpoints, err := d.repo.ListEnabledForEvent(ctx, string(event.Type))
	if err != nil {
		return fmt.Errorf("listing endpoints for %s: %w", event.Type, err)
	}
	if len(endpoints) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}

	for i := range endpoints {
		if err := d.deliver(ctx, &endpoints[i], event, payload); err != nil {
			return err
		}
	}
	return nil
}

func (d *WebhookDispatcher) deliver(ctx context.Context, endpoint *domain.WebhookEndpoint, event domain.Event, payload []byte) error {
	var (
		last      *domain.WebhookDelivery
		permanent bool
	)

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		delivery, perm, err := d.SendAttempt(ctx, endpoint, event.ID, string(event.Type), payload, attempt)
		if err != nil {
			return err
		}
		if delivery.Status == domain.DeliverySucceeded {
			return nil
		}
		last, permanent = delivery, perm
		if perm {
			// A definitive rejection from the receiver. Retrying the
			// same payload cannot change the answer.
			break
		}
	}

	reason := domain.FailureMaxAttempts
	if permanent {
		reason = domain.FailurePermanent
	}

	dl := &domain.WebhookDeadLetter{
		ID:             domain.NewID(domain.PrefixDeadLetter),
		EndpointID:     endpoint.ID,
		EndpointURL:    endpoint.URL,
		EventID:        event.ID,
		EventType:      string(event.Type),
		Attempts:       last.Attempt,
		Status:         domain.DeadLetterPending,
		ReplayCount:    0,
		FailureReason:  reason,
		ResponseStatus: last.ResponseStatus,
		ErrorCode:      last.ErrorCode,
		Payload:        json.RawMessage(payload),
		FailedAt:       d.clock.Now().UTC(),
	}
	if err := d.repo.CreateDeadLetter(ctx, dl); err != nil {
		return fmt.Errorf("dead-lettering event %s for endpoint %s: %w", event.ID, endpoint.ID, err)
	}

	if d.metrics != nil {
		d.metrics.ObserveDeadLetter(string(event.Type), string(reason))
	}
	d.log.Warn().
		Str("endpoint_id", endpoint.ID).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Int("attempts", last.Attempt).
		Str("failure_reason", string(reason)).
		Msg("webhook delivery dead-lettered")
	return nil
}

// SendAttempt performs one signed delivery attempt and persists its log
// row. It reports whether a failure is permanent (a 4xx other than
// 408/425/429); transport errors and 5xx responses are retryable. The
// replay path uses this directly for its single attempt.
func (d *WebhookDispatcher) SendAttempt(
	ctx context.Context,
	endpoint *domain.WebhookEndpoint,
	eventID, eventType string,
	payload []byte,
	attempt int,
) (*domain.WebhookDelivery, bool, error) {
	now := d.clock.Now().UTC()
	delivery := &domain.WebhookDelivery{
		ID:         domain.NewID(domain.PrefixDelivery),
		EndpointID: endpoint.ID,
		EventID:    eventID,
		EventType:  eventType,
		Attempt:    attempt,
		CreatedAt:  now,
	}

	start := time.Now()
	status, errCode := d.post(ctx, endpoint, eventID, eventType, payload)
	elapsed := time.Since(start)

	permanent := false
	switch {
	case status != nil && *status >= 200 && *status < 300:
		delivery.Status = domain.DeliverySucceeded
		deliveredAt := d.clock.Now().UTC()
		delivery.DeliveredAt = &deliveredAt
	default:
		delivery.Status = domain.DeliveryFailed
		permanent = isPermanentStatus(status)
	}
	delivery.ResponseStatus = status
	delivery.ErrorCode = errCode

	if err := d.repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, false, fmt.Errorf("recording delivery attempt for event %s: %w", eventID, err)
	}

	if d.metrics != nil {
		d.metrics.ObserveWebhookAttempt(eventType, string(delivery.Status), attempt, elapsed)
	}
	d.log.Debug().
		Str("endpoint_id", endpoint.ID).
		Str("event_id", eventID).
		Int("attempt", attempt).
		Str("status", string(delivery.Status)).
		Msg("webhook delivery attempt")

	return delivery, permanent, nil
}

// post sends the signed request. It returns the HTTP status when a
// response arrived, and an error code ("network_error" or "timeout") when
// the transport failed.
func (d *WebhookDispatcher) post(ctx context.Context, endpoint *domain.WebhookEndpoint, eventID, eventType string, payload []byte) (*int, *string) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		code := "network_error"
		return nil, &code
	}

	ts := d.clock.Now().UTC().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookEvent, eventType)
	req.Header.Set(HeaderWebhookEventID, eventID)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderWebhookSignature, SignWebhook(endpoint.Secret, ts, payload))
	req.Header.Set(HeaderWebhookSignatureKeyID, WebhookKeyID(endpoint.Secret))

	resp, err := d.client.Do(req)
	if err != nil {
		code := "network_error"
		if attemptCtx.Err() == context.DeadlineExceeded {
			code = "timeout"
		}
		return nil, &code
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return &status, nil
	}
	code := "http_" + strconv.Itoa(status)
	return &status, &code
}

// isPermanentStatus classifies a failed attempt. Any 4xx is permanent
// except 408 (request timeout), 425 (too early) and 429 (rate limited),
// which the receiver may recover from.
func isPermanentStatus(status *int) bool {
	if status == nil {
		return false
	}
	s := *status
	if s < 400 || s >= 500 {
		return false
	}
	switch s {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
