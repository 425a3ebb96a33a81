package ratelimit

import (
	"context"
	"testing"
	"time"

	"pmc-orchestrator/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBucket_BurstThenBlock(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	lim := NewLocalBucket(2, time.Minute, fake)
	ctx := context.Background()

	r1, err := lim.Allow(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, r1.Allowed)
	assert.Equal(t, int64(2), r1.Limit)
	assert.Equal(t, int64(1), r1.Remaining)
	assert.Zero(t, r1.RetryAfterSeconds)

	r2, _ := lim.Allow(ctx, "key1")
	assert.True(t, r2.Allowed)
	assert.Equal(t, int64(0), r2.Remaining)

	r3, _ := lim.Allow(ctx, "key1")
	assert.False(t, r3.Allowed)
	assert.Equal(t, int64(0), r3.Remaining)
	assert.GreaterOrEqual(t, r3.RetryAfterSeconds, int64(1))
}

func TestLocalBucket_ContinuousRefill(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	// 2 per 60s => one token every 30s.
	lim := NewLocalBucket(2, time.Minute, fake)
	ctx := context.Background()

	_, _ = lim.Allow(ctx, "key1")
	_, _ = lim.Allow(ctx, "key1")
	r, _ := lim.Allow(ctx, "key1")
	require.False(t, r.Allowed)

	fake.Advance(30 * time.Second)
	r, _ = lim.Allow(ctx, "key1")
	assert.True(t, r.Allowed, "one token refilled after 30s")

	r, _ = lim.Allow(ctx, "key1")
	assert.False(t, r.Allowed, "bucket drained again")
}

func TestLocalBucket_CappedAtLimit(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	lim := NewLocalBucket(2, time.Minute, fake)
	ctx := context.Background()

	_, _ = lim.Allow(ctx, "key1")
	fake.Advance(time.Hour) // far beyond full refill

	r, _ := lim.Allow(ctx, "key1")
	assert.True(t, r.Allowed)
	assert.Equal(t, int64(1), r.Remaining, "refill caps at the limit")
}

func TestLocalBucket_IndependentIdentities(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	lim := NewLocalBucket(1, time.Minute, fake)
	ctx := context.Background()

	r, _ := lim.Allow(ctx, "a")
	assert.True(t, r.Allowed)
	r, _ = lim.Allow(ctx, "a")
	assert.False(t, r.Allowed)

	r, _ = lim.Allow(ctx, "b")
	assert.True(t, r.Allowed, "identity b has its own bucket")
}

func TestLocalBucket_ReclaimsIdleBuckets(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	lim := NewLocalBucket(5, time.Minute, fake)
	ctx := context.Background()

	_, _ = lim.Allow(ctx, "idle")
	require.Equal(t, 1, lim.Size())

	fake.Advance(4 * time.Minute) // past 3 windows
	_, _ = lim.Allow(ctx, "active")
	assert.Equal(t, 1, lim.Size(), "idle bucket reclaimed, active one kept")
}

func TestLocalBucket_ResetSeconds(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	lim := NewLocalBucket(2, time.Minute, fake)
	ctx := context.Background()

	r, _ := lim.Allow(ctx, "key1")
	// One token spent: full refill needs 30s at 2/min.
	assert.Equal(t, int64(30), r.ResetSeconds)
}
