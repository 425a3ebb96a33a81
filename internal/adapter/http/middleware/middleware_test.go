package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmc-orchestrator/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = response.RequestID(c)
		c.Status(http.StatusNoContent)
	})

	w := perform(r, http.MethodGet, "/ping", "", nil)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
}

func TestRequestIDHonorsCallerValue(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := perform(r, http.MethodGet, "/ping", "", map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestRecoveryReturnsErrorEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := perform(r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"internal_server_error"`)
}

func TestMaxBodySizeRejectsOversizedBody(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodySize(16))
	r.POST("/echo", func(c *gin.Context) {
		var body struct{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	big := `{"padding":"` + strings.Repeat("x", 64) + `"}`
	w := perform(r, http.MethodPost, "/echo", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = perform(r, http.MethodPost, "/echo", `{}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireIdempotencyKey(t *testing.T) {
	r := gin.New()
	r.Use(RequireIdempotencyKey(32))
	r.POST("/write", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxIdempotencyKey))
	})

	w := perform(r, http.MethodPost, "/write", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_idempotency_key")

	w = perform(r, http.MethodPost, "/write", "", map[string]string{HeaderIdempotencyKey: "bad key!"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_idempotency_key")

	w = perform(r, http.MethodPost, "/write", "", map[string]string{HeaderIdempotencyKey: strings.Repeat("k", 33)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = perform(r, http.MethodPost, "/write", "", map[string]string{HeaderIdempotencyKey: "order-2024.retry:1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "order-2024.retry:1", w.Body.String())
}
