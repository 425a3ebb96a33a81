package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmc-orchestrator/internal/service"
)

func TestBearerAuth(t *testing.T) {
	hash, err := service.HashAPIKey("sk_test_valid")
	require.NoError(t, err)
	auth := service.NewAPIKeyAuth([]string{hash})

	r := gin.New()
	r.Use(BearerAuth(auth))
	r.GET("/secure", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxIdentity))
	})

	t.Run("missing header", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/secure", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing_api_key")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/secure", "", map[string]string{"Authorization": "Basic abc"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing_api_key")
	})

	t.Run("invalid key", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/secure", "", map[string]string{"Authorization": "Bearer sk_test_wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_api_key")
	})

	t.Run("valid key sets hashed identity", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/secure", "", map[string]string{"Authorization": "Bearer sk_test_valid"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, service.Identity("sk_test_valid"), w.Body.String())
		assert.NotContains(t, w.Body.String(), "sk_test_valid")
	})
}
