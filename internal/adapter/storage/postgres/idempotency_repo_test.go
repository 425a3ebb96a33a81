package postgres

import (
	"context"
	"testing"
	"time"

	"pmc-orchestrator/internal/clock"
	"pmc-orchestrator/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idempotencyCols() []string {
	return []string{"scope", "key", "payload_fingerprint", "status_code", "response_body", "created_at"}
}

func TestIdempotencyRepo_GetAndPut(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := NewIdempotencyRepo(mock, 24*time.Hour, clock.NewFake(now))

	rec := &domain.IdempotencyRecord{
		Scope:              "create_payment_intent",
		Key:                "intent-001",
		PayloadFingerprint: "abc123",
		StatusCode:         201,
		ResponseBody:       []byte(`{"id":"pi_1"}`),
	}

	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs(rec.Scope, rec.Key, rec.PayloadFingerprint, rec.StatusCode, rec.ResponseBody, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Put(context.Background(), rec))
	assert.Equal(t, now, rec.CreatedAt, "Put stamps created_at from the clock")

	mock.ExpectQuery("SELECT .+ FROM idempotency_records WHERE scope").
		WithArgs(rec.Scope, rec.Key).
		WillReturnRows(pgxmock.NewRows(idempotencyCols()).
			AddRow(rec.Scope, rec.Key, rec.PayloadFingerprint, rec.StatusCode, rec.ResponseBody, now))

	got, err := repo.Get(context.Background(), rec.Scope, rec.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc123", got.PayloadFingerprint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_ExpiredRowIsEvicted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 6, 2, 13, 0, 0, 0, time.UTC)
	repo := NewIdempotencyRepo(mock, 24*time.Hour, clock.NewFake(now))
	createdAt := now.Add(-25 * time.Hour)

	mock.ExpectQuery("SELECT .+ FROM idempotency_records WHERE scope").
		WithArgs("create_refund", "refund-001").
		WillReturnRows(pgxmock.NewRows(idempotencyCols()).
			AddRow("create_refund", "refund-001", "abc", 201, []byte(`{}`), createdAt))
	mock.ExpectExec("DELETE FROM idempotency_records").
		WithArgs("create_refund", "refund-001").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	got, err := repo.Get(context.Background(), "create_refund", "refund-001")
	require.NoError(t, err)
	assert.Nil(t, got, "expired record is invisible")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock, 24*time.Hour, clock.NewFake(time.Now()))

	mock.ExpectQuery("SELECT .+ FROM idempotency_records WHERE scope").
		WithArgs("create_payment_intent", "missing").
		WillReturnRows(pgxmock.NewRows(idempotencyCols()))

	got, err := repo.Get(context.Background(), "create_payment_intent", "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
