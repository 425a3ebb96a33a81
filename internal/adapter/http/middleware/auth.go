package middleware

import (
	"strings"

	"pmc-orchestrator/internal/service"
	"pmc-orchestrator/pkg/apperror"
	"pmc-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
)

// BearerAuth verifies the Authorization bearer API key and stores the
// caller's hashed identity for the rate limiter.
func BearerAuth(auth *service.APIKeyAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, apperror.ErrMissingAPIKey())
			c.Abort()
			return
		}

		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || key == "" {
			response.Error(c, apperror.ErrMissingAPIKey())
			c.Abort()
			return
		}

		if !auth.Verify(key) {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}

		c.Set(CtxIdentity, service.Identity(key))
		c.Next()
	}
}
