package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/pkg/apperror"
)

// WebhookService manages webhook endpoints and the dead-letter queue.
// Endpoint mutations are guarded by If-Match entity tags; replay reuses
// the dispatcher's single-attempt send.
type WebhookService struct {
	repo       ports.WebhookRepository
	dispatcher *WebhookDispatcher
	clock      ports.Clock
	log        zerolog.Logger
}

// NewWebhookService creates the service.
func NewWebhookService(repo ports.WebhookRepository, dispatcher *WebhookDispatcher, clock ports.Clock, log zerolog.Logger) *WebhookService {
	return &WebhookService{
		repo:       repo,
		dispatcher: dispatcher,
		clock:      clock,
		log:        log.With().Str("component", "webhook_service").Logger(),
	}
}

// CreateEndpoint registers a subscriber URL and mints its signing secret.
// The secret is returned once, on creation and rotation only.
func (s *WebhookService) CreateEndpoint(ctx context.Context, url string, events []string) (*domain.WebhookEndpoint, error) {
	secret, err := newWebhookSecret()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if events == nil {
		events = []string{}
	}

	endpoint := &domain.WebhookEndpoint{
		ID:        domain.NewID(domain.PrefixWebhookEndpoint),
		URL:       url,
		Events:    events,
		Secret:    secret,
		Enabled:   true,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, apperror.InternalError(err)
	}
	return endpoint, nil
}

// GetEndpoint loads an endpoint by id.
func (s *WebhookService) GetEndpoint(ctx context.Context, id string) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.repo.GetEndpoint(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrNotFound("Webhook endpoint")
	}
	return endpoint, nil
}

// ListEndpoints pages registered endpoints.
func (s *WebhookService) ListEndpoints(ctx context.Context, f ports.EndpointFilter, p ports.Page) ([]domain.WebhookEndpoint, bool, error) {
	items, hasMore, err := s.repo.ListEndpoints(ctx, f, p)
	if err != nil {
		if errors.Is(err, ports.ErrCursorOutOfWindow) {
			return nil, false, apperror.ErrInvalidCursor()
		}
		return nil, false, apperror.InternalError(err)
	}
	return items, hasMore, nil
}

// EndpointPatch carries the mutable endpoint fields; nil leaves a field
// unchanged.
type EndpointPatch struct {
	URL     *string
	Events  *[]string
	Enabled *bool
}

// UpdateEndpoint applies a patch under If-Match concurrency control.
func (s *WebhookService) UpdateEndpoint(ctx context.Context, id, ifMatch string, patch EndpointPatch) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(ifMatch, endpoint.ETag()); err != nil {
		return nil, err
	}

	if patch.URL != nil {
		endpoint.URL = *patch.URL
	}
	if patch.Events != nil {
		endpoint.Events = *patch.Events
		if endpoint.Events == nil {
			endpoint.Events = []string{}
		}
	}
	if patch.Enabled != nil {
		endpoint.Enabled = *patch.Enabled
	}

	if err := s.repo.UpdateEndpoint(ctx, endpoint); err != nil {
		return nil, apperror.InternalError(err)
	}
	return endpoint, nil
}

// RotateSecret replaces the endpoint's signing secret under If-Match.
// Deliveries signed with the old secret are not retroactively re-signed.
func (s *WebhookService) RotateSecret(ctx context.Context, id, ifMatch string) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(ifMatch, endpoint.ETag()); err != nil {
		return nil, err
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	endpoint.Secret = secret

	if err := s.repo.UpdateEndpoint(ctx, endpoint); err != nil {
		return nil, apperror.InternalError(err)
	}
	s.log.Info().Str("endpoint_id", id).Msg("webhook secret rotated")
	return endpoint, nil
}

// ListDeliveries pages the per-attempt delivery log.
func (s *WebhookService) ListDeliveries(ctx context.Context, f ports.DeliveryFilter, p ports.Page) ([]domain.WebhookDelivery, bool, error) {
	items, hasMore, err := s.repo.ListDeliveries(ctx, f, p)
	if err != nil {
		if errors.Is(err, ports.ErrCursorOutOfWindow) {
			return nil, false, apperror.ErrInvalidCursor()
		}
		return nil, false, apperror.InternalError(err)
	}
	return items, hasMore, nil
}

// ListDeadLetters pages the dead-letter queue.
func (s *WebhookService) ListDeadLetters(ctx context.Context, f ports.DeadLetterFilter, p ports.Page) ([]domain.WebhookDeadLetter, bool, error) {
	items, hasMore, err := s.repo.ListDeadLetters(ctx, f, p)
	if err != nil {
		if errors.Is(err, ports.ErrCursorOutOfWindow) {
			return nil, false, apperror.ErrInvalidCursor()
		}
		return nil, false, apperror.InternalError(err)
	}
	return items, hasMore, nil
}

// GetDeadLetter loads a dead-letter by id.
func (s *WebhookService) GetDeadLetter(ctx context.Context, id string) (*domain.WebhookDeadLetter, error) {
	dl, err := s.repo.GetDeadLetter(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if dl == nil {
		return nil, apperror.ErrNotFound("Webhook dead-letter")
	}
	return dl, nil
}

// Replay re-sends a dead-lettered event to its endpoint: one attempt with
// the next ordinal, logged as a regular delivery. Success flips the
// dead-letter to replayed; failure keeps it pending with a refreshed
// classification so it can be replayed again.
func (s *WebhookService) Replay(ctx context.Context, deadLetterID string) (*domain.WebhookDeadLetter, error) {
	dl, err := s.GetDeadLetter(ctx, deadLetterID)
	if err != nil {
		return nil, err
	}
	if dl.Status == domain.DeadLetterReplayed {
		return nil, apperror.ErrDeadLetterAlreadyReplayed()
	}

	endpoint, err := s.GetEndpoint(ctx, dl.EndpointID)
	if err != nil {
		return nil, err
	}
	if !endpoint.Enabled {
		return nil, apperror.ErrWebhookEndpointDisabled()
	}

	attempt := dl.Attempts + 1
	delivery, permanent, err := s.dispatcher.SendAttempt(ctx, endpoint, dl.EventID, dl.EventType, dl.Payload, attempt)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	now := s.clock.Now().UTC()
	dl.Attempts = attempt
	dl.ReplayCount++
	if delivery.Status == domain.DeliverySucceeded {
		dl.Status = domain.DeadLetterReplayed
		dl.LastReplayedAt = &now
	} else {
		dl.FailureReason = domain.FailureMaxAttempts
		if permanent {
			dl.FailureReason = domain.FailurePermanent
		}
		dl.ResponseStatus = delivery.ResponseStatus
		dl.ErrorCode = delivery.ErrorCode
		dl.FailedAt = now
	}

	if err := s.repo.UpdateDeadLetter(ctx, dl); err != nil {
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("dead_letter_id", dl.ID).
		Str("endpoint_id", endpoint.ID).
		Str("status", string(dl.Status)).
		Int("replay_count", dl.ReplayCount).
		Msg("dead-letter replay")
	return dl, nil
}

// ReplayBatchRequest selects the dead-letters to replay. Nil filters are
// ignored; a nil Status defaults to pending.
type ReplayBatchRequest struct {
	Limit      int
	Status     *string
	EventType  *string
	EndpointID *string
}

// ReplayBatchItem is the per-dead-letter outcome of a batch replay.
type ReplayBatchItem struct {
	DeadLetterID string  `json:"dead_letter_id"`
	Status       string  `json:"status"`
	ReplayCount  int     `json:"replay_count"`
	Outcome      string  `json:"outcome"` // replayed | failed
	ErrorCode    *string `json:"error_code,omitempty"`
}

// ReplayBatchResult summarizes a batch replay. HasMore reflects the
// dead-letter listing page, not the replay outcomes.
type ReplayBatchResult struct {
	Items     []ReplayBatchItem `json:"items"`
	Processed int               `json:"processed"`
	Replayed  int               `json:"replayed"`
	Failed    int               `json:"failed"`
	HasMore   bool              `json:"has_more"`
}

// ReplayBatch replays the first page of matching dead-letters in listing
// order. Individual failures are accumulated, never aborting the batch.
func (s *WebhookService) ReplayBatch(ctx context.Context, req ReplayBatchRequest) (*ReplayBatchResult, error) {
	status := string(domain.DeadLetterPending)
	if req.Status != nil {
		status = *req.Status
	}
	filter := ports.DeadLetterFilter{
		Status:     &status,
		EventType:  req.EventType,
		EndpointID: req.EndpointID,
	}

	deadLetters, hasMore, err := s.repo.ListDeadLetters(ctx, filter, ports.Page{Limit: req.Limit})
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	result := &ReplayBatchResult{
		Items:   make([]ReplayBatchItem, 0, len(deadLetters)),
		HasMore: hasMore,
	}
	for i := range deadLetters {
		item := s.replayOne(ctx, deadLetters[i].ID)
		result.Items = append(result.Items, item)
		result.Processed++
		if item.Outcome == "replayed" {
			result.Replayed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func (s *WebhookService) replayOne(ctx context.Context, deadLetterID string) ReplayBatchItem {
	dl, err := s.Replay(ctx, deadLetterID)
	if err != nil {
		code := "internal_server_error"
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		return ReplayBatchItem{
			DeadLetterID: deadLetterID,
			Status:       string(domain.DeadLetterPending),
			Outcome:      "failed",
			ErrorCode:    &code,
		}
	}

	item := ReplayBatchItem{
		DeadLetterID: dl.ID,
		Status:       string(dl.Status),
		ReplayCount:  dl.ReplayCount,
	}
	if dl.Status == domain.DeadLetterReplayed {
		item.Outcome = "replayed"
	} else {
		item.Outcome = "failed"
		item.ErrorCode = dl.ErrorCode
	}
	return item
}

// checkIfMatch validates an If-Match header value against the current
// entity tag. Empty skips the check, "*" always matches, a quoted tag
// must equal the current one. Anything else is malformed.
func checkIfMatch(ifMatch, current string) error {
	if ifMatch == "" || ifMatch == "*" {
		return nil
	}
	if len(ifMatch) < 2 || !strings.HasPrefix(ifMatch, `"`) || !strings.HasSuffix(ifMatch, `"`) {
		return apperror.ErrInvalidIfMatch()
	}
	if ifMatch[1:len(ifMatch)-1] != current {
		return apperror.ErrPreconditionFailed()
	}
	return nil
}

// newWebhookSecret mints a signing secret: "whsec_" + 48 hex chars.
func newWebhookSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
