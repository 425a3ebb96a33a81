package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu   sync.Mutex
	recs map[string]*domain.IdempotencyRecord
}

func newMemRepo() *memRepo {
	return &memRepo{recs: make(map[string]*domain.IdempotencyRecord)}
}

func (m *memRepo) Get(_ context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[scope+":"+key], nil
}

func (m *memRepo) Put(_ context.Context, rec *domain.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rec.Scope + ":" + rec.Key
	if _, exists := m.recs[k]; !exists {
		m.recs[k] = rec
	}
	return nil
}

func TestExecutor_FirstCallRunsBody(t *testing.T) {
	ex := NewExecutor(newMemRepo(), NewKeyLocks())

	calls := 0
	res, err := ex.Execute(context.Background(), "payment_intents", "k1", []byte(`{"amount":100}`), func(context.Context) (int, any, error) {
		calls++
		return 201, map[string]string{"id": "pi_1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 201, res.StatusCode)
	assert.False(t, res.Replayed)
	assert.JSONEq(t, `{"id":"pi_1"}`, string(res.Body))
}

func TestExecutor_ReplaySamePayload(t *testing.T) {
	ex := NewExecutor(newMemRepo(), NewKeyLocks())
	ctx := context.Background()

	calls := 0
	body := func(context.Context) (int, any, error) {
		calls++
		return 201, map[string]string{"id": "pi_1"}, nil
	}

	_, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{"amount":100,"currency":"USD"}`), body)
	require.NoError(t, err)

	// Same payload with reordered keys fingerprints identically.
	res, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{"currency":"USD","amount":100}`), body)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "body runs once")
	assert.True(t, res.Replayed)
	assert.Equal(t, 201, res.StatusCode)
	assert.JSONEq(t, `{"id":"pi_1"}`, string(res.Body))
}

func TestExecutor_KeyReuseConflict(t *testing.T) {
	ex := NewExecutor(newMemRepo(), NewKeyLocks())
	ctx := context.Background()

	body := func(context.Context) (int, any, error) { return 201, map[string]string{"id": "pi_1"}, nil }
	_, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{"amount":100}`), body)
	require.NoError(t, err)

	_, err = ex.Execute(ctx, "payment_intents", "k1", []byte(`{"amount":200}`), body)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "idempotency_conflict", appErr.Code)
}

func TestExecutor_ScopesAreIndependent(t *testing.T) {
	ex := NewExecutor(newMemRepo(), NewKeyLocks())
	ctx := context.Background()

	calls := 0
	body := func(context.Context) (int, any, error) {
		calls++
		return 200, map[string]int{"n": calls}, nil
	}

	_, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{}`), body)
	require.NoError(t, err)
	_, err = ex.Execute(ctx, "refunds", "k1", []byte(`{}`), body)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "same key under different scopes runs both bodies")
}

func TestExecutor_BodyErrorStoresNothing(t *testing.T) {
	ex := NewExecutor(newMemRepo(), NewKeyLocks())
	ctx := context.Background()

	boom := errors.New("provider down")
	_, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{}`), func(context.Context) (int, any, error) {
		return 0, nil, boom
	})
	require.ErrorIs(t, err, boom)

	// A retry with the same key runs the body again.
	res, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{}`), func(context.Context) (int, any, error) {
		return 201, map[string]string{"id": "pi_1"}, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestExecutor_ConcurrentDuplicatesSingleFlight(t *testing.T) {
	ex := NewExecutor(newMemRepo(), NewKeyLocks())
	ctx := context.Background()

	var calls int32
	var mu sync.Mutex
	body := func(context.Context) (int, any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return 201, map[string]string{"id": "pi_1"}, nil
	}

	const n = 8
	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ex.Execute(ctx, "payment_intents", "k1", []byte(`{"amount":100}`), body)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, int32(1), calls, "exactly one execution across concurrent duplicates")
	mu.Unlock()

	replayed := 0
	for _, r := range results {
		assert.Equal(t, 201, r.StatusCode)
		assert.JSONEq(t, `{"id":"pi_1"}`, string(r.Body))
		if r.Replayed {
			replayed++
		}
	}
	assert.Equal(t, n-1, replayed)
}

func TestKeyLocks_CancelledWaiter(t *testing.T) {
	locks := NewKeyLocks()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locks.WithLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := locks.WithLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
