package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmc-orchestrator/internal/clock"
	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/pkg/apperror"
)

func testWebhookService(repo *fakeWebhookRepo, clk *clock.Fake) *WebhookService {
	dispatcher := testDispatcher(repo, 3, clk)
	return NewWebhookService(repo, dispatcher, clk, zerolog.Nop())
}

func seedDeadLetter(t *testing.T, repo *fakeWebhookRepo, endpointID, url string) *domain.WebhookDeadLetter {
	t.Helper()
	ev := succeededEvent()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	dl := &domain.WebhookDeadLetter{
		ID:            domain.NewID(domain.PrefixDeadLetter),
		EndpointID:    endpointID,
		EndpointURL:   url,
		EventID:       ev.ID,
		EventType:     string(ev.Type),
		Attempts:      3,
		Status:        domain.DeadLetterPending,
		FailureReason: domain.FailureMaxAttempts,
		Payload:       payload,
		FailedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateDeadLetter(context.Background(), dl))
	return dl
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestWebhookService_CreateEndpoint(t *testing.T) {
	repo := newFakeWebhookRepo()
	clk := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)

	endpoint, err := svc.CreateEndpoint(context.Background(), "https://example.com/hook", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(endpoint.ID, "we_"))
	assert.True(t, strings.HasPrefix(endpoint.Secret, "whsec_"))
	assert.True(t, endpoint.Enabled)
	assert.NotNil(t, endpoint.Events)
	assert.Empty(t, endpoint.Events, "nil events normalizes to subscribe-all")
	assert.Equal(t, clk.Now(), endpoint.CreatedAt)
	assert.Len(t, endpoint.ETag(), 24)

	stored, err := svc.GetEndpoint(context.Background(), endpoint.ID)
	require.NoError(t, err)
	assert.Equal(t, endpoint.Secret, stored.Secret)
}

func TestWebhookService_UpdateEndpointIfMatch(t *testing.T) {
	repo := newFakeWebhookRepo()
	clk := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)
	ctx := context.Background()

	endpoint, err := svc.CreateEndpoint(ctx, "https://example.com/hook", nil)
	require.NoError(t, err)

	newURL := "https://example.com/hook/v2"

	t.Run("stale tag", func(t *testing.T) {
		_, err := svc.UpdateEndpoint(ctx, endpoint.ID, `"deadbeefdeadbeefdeadbeef"`, EndpointPatch{URL: &newURL})
		assertAppErrorCode(t, err, "precondition_failed")
	})

	t.Run("malformed tag", func(t *testing.T) {
		_, err := svc.UpdateEndpoint(ctx, endpoint.ID, "not-quoted", EndpointPatch{URL: &newURL})
		assertAppErrorCode(t, err, "invalid_if_match")
	})

	t.Run("current tag", func(t *testing.T) {
		updated, err := svc.UpdateEndpoint(ctx, endpoint.ID, `"`+endpoint.ETag()+`"`, EndpointPatch{URL: &newURL})
		require.NoError(t, err)
		assert.Equal(t, newURL, updated.URL)
		assert.NotEqual(t, endpoint.ETag(), updated.ETag(), "tag changes with content")
	})

	t.Run("wildcard", func(t *testing.T) {
		disabled := false
		updated, err := svc.UpdateEndpoint(ctx, endpoint.ID, "*", EndpointPatch{Enabled: &disabled})
		require.NoError(t, err)
		assert.False(t, updated.Enabled)
	})
}

func TestWebhookService_RotateSecret(t *testing.T) {
	repo := newFakeWebhookRepo()
	clk := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)
	ctx := context.Background()

	endpoint, err := svc.CreateEndpoint(ctx, "https://example.com/hook", nil)
	require.NoError(t, err)

	rotated, err := svc.RotateSecret(ctx, endpoint.ID, `"`+endpoint.ETag()+`"`)
	require.NoError(t, err)
	assert.NotEqual(t, endpoint.Secret, rotated.Secret)
	assert.True(t, strings.HasPrefix(rotated.Secret, "whsec_"))
	assert.NotEqual(t, endpoint.ETag(), rotated.ETag())
}

func TestWebhookService_ReplaySucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	endpoint := seedEndpoint(t, repo, server.URL, nil)
	dl := seedDeadLetter(t, repo, endpoint.ID, server.URL)

	clk := clock.NewFake(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)

	replayed, err := svc.Replay(context.Background(), dl.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DeadLetterReplayed, replayed.Status)
	assert.Equal(t, 1, replayed.ReplayCount)
	assert.Equal(t, 4, replayed.Attempts, "replay ordinal follows the original attempts")
	require.NotNil(t, replayed.LastReplayedAt)
	assert.Equal(t, clk.Now(), *replayed.LastReplayedAt)

	require.Len(t, repo.deliveries, 1)
	assert.Equal(t, 4, repo.deliveries[0].Attempt)
	assert.Equal(t, domain.DeliverySucceeded, repo.deliveries[0].Status)
}

func TestWebhookService_ReplayFailureStaysPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	endpoint := seedEndpoint(t, repo, server.URL, nil)
	dl := seedDeadLetter(t, repo, endpoint.ID, server.URL)

	clk := clock.NewFake(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)

	replayed, err := svc.Replay(context.Background(), dl.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DeadLetterPending, replayed.Status)
	assert.Equal(t, 1, replayed.ReplayCount)
	assert.Equal(t, 4, replayed.Attempts)
	assert.Equal(t, domain.FailurePermanent, replayed.FailureReason, "classification refreshed from the new response")
	assert.Equal(t, clk.Now(), replayed.FailedAt)
	assert.Nil(t, replayed.LastReplayedAt)

	// A second replay of a still-pending dead-letter is allowed.
	again, err := svc.Replay(context.Background(), dl.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.ReplayCount)
	assert.Equal(t, 5, again.Attempts)
}

func TestWebhookService_ReplayGuards(t *testing.T) {
	repo := newFakeWebhookRepo()
	clk := clock.NewFake(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)
	ctx := context.Background()

	t.Run("unknown dead-letter", func(t *testing.T) {
		_, err := svc.Replay(ctx, "dl_missing")
		assertAppErrorCode(t, err, "resource_not_found")
	})

	t.Run("already replayed", func(t *testing.T) {
		endpoint := seedEndpoint(t, repo, "https://example.com/hook", nil)
		dl := seedDeadLetter(t, repo, endpoint.ID, endpoint.URL)
		dl.Status = domain.DeadLetterReplayed
		require.NoError(t, repo.UpdateDeadLetter(ctx, dl))

		_, err := svc.Replay(ctx, dl.ID)
		assertAppErrorCode(t, err, "dead_letter_already_replayed")
	})

	t.Run("disabled endpoint", func(t *testing.T) {
		endpoint := seedEndpoint(t, repo, "https://example.com/hook2", nil)
		endpoint.Enabled = false
		require.NoError(t, repo.UpdateEndpoint(ctx, endpoint))
		dl := seedDeadLetter(t, repo, endpoint.ID, endpoint.URL)

		_, err := svc.Replay(ctx, dl.ID)
		assertAppErrorCode(t, err, "webhook_endpoint_disabled")
	})
}

func TestWebhookService_ReplayBatch(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failServer.Close()

	repo := newFakeWebhookRepo()
	okEndpoint := seedEndpoint(t, repo, okServer.URL, nil)
	failEndpoint := seedEndpoint(t, repo, failServer.URL, nil)

	dlOK := seedDeadLetter(t, repo, okEndpoint.ID, okServer.URL)
	dlFail := seedDeadLetter(t, repo, failEndpoint.ID, failServer.URL)

	// Already-replayed entries are outside the default pending filter.
	dlDone := seedDeadLetter(t, repo, okEndpoint.ID, okServer.URL)
	dlDone.Status = domain.DeadLetterReplayed
	require.NoError(t, repo.UpdateDeadLetter(context.Background(), dlDone))

	clk := clock.NewFake(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)

	result, err := svc.ReplayBatch(context.Background(), ReplayBatchRequest{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Replayed)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.HasMore)
	require.Len(t, result.Items, 2)

	byID := map[string]ReplayBatchItem{}
	for _, item := range result.Items {
		byID[item.DeadLetterID] = item
	}

	okItem := byID[dlOK.ID]
	assert.Equal(t, "replayed", okItem.Outcome)
	assert.Equal(t, string(domain.DeadLetterReplayed), okItem.Status)
	assert.Equal(t, 1, okItem.ReplayCount)

	failItem := byID[dlFail.ID]
	assert.Equal(t, "failed", failItem.Outcome)
	assert.Equal(t, string(domain.DeadLetterPending), failItem.Status)
	require.NotNil(t, failItem.ErrorCode)
	assert.Equal(t, "http_500", *failItem.ErrorCode)
}

func TestWebhookService_ReplayBatchHonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	endpoint := seedEndpoint(t, repo, server.URL, nil)
	for i := 0; i < 3; i++ {
		seedDeadLetter(t, repo, endpoint.ID, server.URL)
	}

	clk := clock.NewFake(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := testWebhookService(repo, clk)

	result, err := svc.ReplayBatch(context.Background(), ReplayBatchRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.True(t, result.HasMore, "has_more reflects the listing page")
}
