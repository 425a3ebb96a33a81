package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"pmc-orchestrator/internal/core/ports"
)

type stubLimiter struct {
	result *ports.RateLimitResult
	err    error
	calls  []string
}

func (s *stubLimiter) Allow(_ context.Context, identity string) (*ports.RateLimitResult, error) {
	s.calls = append(s.calls, identity)
	return s.result, s.err
}

func limitedRouter(limiter ports.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(limiter, nil, zerolog.Nop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRateLimitSetsHeaders(t *testing.T) {
	limiter := &stubLimiter{result: &ports.RateLimitResult{
		Allowed: true, Limit: 300, Remaining: 299, ResetSeconds: 42,
	}}
	w := perform(limitedRouter(limiter), http.MethodGet, "/ping", "", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "300", w.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "299", w.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "42", w.Header().Get("RateLimit-Reset"))
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	limiter := &stubLimiter{result: &ports.RateLimitResult{
		Allowed: false, Limit: 300, Remaining: 0, ResetSeconds: 17, RetryAfterSeconds: 17,
	}}
	w := perform(limitedRouter(limiter), http.MethodGet, "/ping", "", nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "17", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimitAllowsOnLimiterFailure(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	w := perform(limitedRouter(limiter), http.MethodGet, "/ping", "", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("RateLimit-Limit"))
}

func TestRateLimitUsesAuthedIdentity(t *testing.T) {
	limiter := &stubLimiter{result: &ports.RateLimitResult{Allowed: true, Limit: 1, Remaining: 0}}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(CtxIdentity, "caller-hash") })
	r.Use(RateLimit(limiter, nil, zerolog.Nop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	perform(r, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, []string{"caller-hash"}, limiter.calls)
}
