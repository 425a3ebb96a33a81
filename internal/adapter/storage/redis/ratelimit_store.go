package redis

import (
	"context"
	"fmt"
	"time"

	"pmc-orchestrator/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// tokenBucketScript runs the bucket arithmetic atomically server-side:
// continuous refill at limit/window per second, capped at the limit, one
// token consumed per allowed request. The caller supplies the current time
// so all processes share one clock source per request.
//
// KEYS[1] bucket hash {tokens, ts}
// ARGV[1] limit, ARGV[2] window seconds, ARGV[3] now (unix milliseconds)
// Returns {allowed, remaining, reset_seconds, retry_after_seconds}.
var tokenBucketScript = goredis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local rate = limit / window

local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = limit
  ts = now
end

local elapsed = (now - ts) / 1000
if elapsed > 0 then
  tokens = math.min(limit, tokens + elapsed * rate)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil((1 - tokens) / rate)
  if retry < 1 then retry = 1 end
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], math.floor(window * 3 * 1000))

local reset = math.ceil((limit - tokens) / rate)
return {allowed, math.floor(tokens), reset, retry}
`)

// RateLimitStore is the distributed token bucket: the same arithmetic as
// the in-process limiter, executed atomically in Redis so every worker
// process observes one shared bucket per identity. Idle buckets expire
// after three windows.
type RateLimitStore struct {
	client *goredis.Client
	limit  int64
	window time.Duration
	clock  ports.Clock
	prefix string
}

// NewRateLimitStore creates a Redis-backed limiter allowing limit requests
// per window.
func NewRateLimitStore(client *goredis.Client, limit int64, window time.Duration, clock ports.Clock) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		limit:  limit,
		window: window,
		clock:  clock,
		prefix: "ratelimit:",
	}
}

// Allow consumes one token for the identity if available.
func (s *RateLimitStore) Allow(ctx context.Context, identity string) (*ports.RateLimitResult, error) {
	now := s.clock.Now().UnixMilli()
	res, err := tokenBucketScript.Run(ctx, s.client,
		[]string{s.prefix + identity},
		s.limit, int64(s.window.Seconds()), now,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis token bucket: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("redis token bucket: unexpected reply length %d", len(res))
	}

	return &ports.RateLimitResult{
		Allowed:           res[0] == 1,
		Limit:             s.limit,
		Remaining:         res[1],
		ResetSeconds:      res[2],
		RetryAfterSeconds: res[3],
	}, nil
}
