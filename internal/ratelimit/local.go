package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"pmc-orchestrator/internal/core/ports"
)

// bucket tracks one identity's tokens. tokens is fractional because the
// refill is continuous (limit/window per second).
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// LocalBucket is the in-process token-bucket limiter. Idle buckets are
// reclaimed after three windows without activity.
type LocalBucket struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     int64
	window    time.Duration
	clock     ports.Clock
	lastSweep time.Time
}

// NewLocalBucket creates a limiter allowing limit requests per window,
// refilled continuously.
func NewLocalBucket(limit int64, window time.Duration, clock ports.Clock) *LocalBucket {
	return &LocalBucket{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		clock:   clock,
	}
}

// Allow consumes one token for the identity if available.
func (l *LocalBucket) Allow(_ context.Context, identity string) (*ports.RateLimitResult, error) {
	now := l.clock.Now()
	rate := float64(l.limit) / l.window.Seconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{tokens: float64(l.limit), lastSeen: now}
		l.buckets[identity] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		if elapsed > 0 {
			b.tokens = math.Min(float64(l.limit), b.tokens+elapsed*rate)
		}
		b.lastSeen = now
	}

	res := &ports.RateLimitResult{Limit: l.limit}
	if b.tokens >= 1 {
		b.tokens--
		res.Allowed = true
	} else {
		res.RetryAfterSeconds = int64(math.Ceil((1 - b.tokens) / rate))
		if res.RetryAfterSeconds < 1 {
			res.RetryAfterSeconds = 1
		}
	}
	res.Remaining = int64(math.Floor(b.tokens))
	res.ResetSeconds = int64(math.Ceil((float64(l.limit) - b.tokens) / rate))
	return res, nil
}

// maybeSweep drops buckets idle for at least three windows. Runs at most
// once per window. Caller holds the mutex.
func (l *LocalBucket) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	idle := 3 * l.window
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idle {
			delete(l.buckets, id)
		}
	}
}

// Size returns the number of tracked identities (test hook).
func (l *LocalBucket) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
