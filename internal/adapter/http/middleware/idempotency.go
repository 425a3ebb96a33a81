package middleware

import (
	"regexp"

	"pmc-orchestrator/pkg/apperror"
	"pmc-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is required on every write request.
const HeaderIdempotencyKey = "Idempotency-Key"

var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// RequireIdempotencyKey validates the Idempotency-Key header on write
// routes. Absent → 400; malformed or too long → 422.
func RequireIdempotencyKey(maxLength int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			response.Error(c, apperror.ErrMissingIdempotencyKey())
			c.Abort()
			return
		}
		if len(key) > maxLength || !idempotencyKeyPattern.MatchString(key) {
			response.Error(c, apperror.ErrInvalidIdempotencyKey())
			c.Abort()
			return
		}
		c.Set(CtxIdempotencyKey, key)
		c.Next()
	}
}
