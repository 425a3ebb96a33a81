package handler

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pmc-orchestrator/internal/adapter/http/dto"
	"pmc-orchestrator/internal/adapter/http/middleware"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/idempotency"
	"pmc-orchestrator/pkg/apperror"
	"pmc-orchestrator/pkg/cursor"
	"pmc-orchestrator/pkg/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 5000
)

// parsePage reads limit and cursor query parameters into a keyset page.
func parsePage(c *gin.Context, codec *cursor.Codec) (ports.Page, error) {
	page := ports.Page{Limit: defaultPageLimit}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			return ports.Page{}, apperror.ErrInvalidField("limit", "limit must be an integer between 1 and 5000")
		}
		page.Limit = n
	}

	if token := c.Query("cursor"); token != "" {
		internal, err := codec.Decode(token)
		if err != nil {
			return ports.Page{}, apperror.ErrInvalidCursor()
		}
		page.AfterID = internal
	}
	return page, nil
}

// buildPagination encodes the next-page cursor when more results exist.
func buildPagination(codec *cursor.Codec, limit int, hasMore bool, lastID string) response.Pagination {
	p := response.Pagination{Limit: limit, HasMore: hasMore}
	if hasMore && lastID != "" {
		if token, err := codec.Encode(lastID); err == nil {
			p.NextCursor = &token
		}
	}
	return p
}

// pathID validates a path parameter as a resource id.
func pathID(c *gin.Context, name string) (string, error) {
	id := c.Param(name)
	if id == "" || !dto.ValidID(id) {
		return "", apperror.ErrInvalidPathParameter(name)
	}
	return id, nil
}

// queryString returns a query parameter, nil when absent.
func queryString(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

// queryInt64 parses an integer query parameter.
func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperror.ErrInvalidField(name, name+" must be an integer")
	}
	return &n, nil
}

// queryTime parses an RFC 3339 query parameter.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.ErrInvalidField(name, name+" must be an RFC 3339 timestamp")
	}
	return &t, nil
}

// readPayload drains the request body; it doubles as the idempotency
// fingerprint input, so it is read exactly once per request.
func readPayload(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apperror.ErrInvalidRequestBody("cannot read request body")
	}
	return body, nil
}

// bindJSON unmarshals a payload into a request DTO.
func bindJSON(payload []byte, v any) error {
	if len(payload) == 0 {
		return apperror.ErrInvalidRequestBody("request body is required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return apperror.ErrInvalidRequestBody("malformed JSON body")
	}
	return nil
}

// idemKey returns the validated Idempotency-Key set by the middleware.
func idemKey(c *gin.Context) string {
	return c.GetString(middleware.CtxIdempotencyKey)
}

// echoWriteHeaders sets the write-response headers every mutation carries.
func echoWriteHeaders(c *gin.Context, replayed bool) {
	c.Header(middleware.HeaderIdempotencyKey, idemKey(c))
	c.Header("X-Idempotency-Replayed", strconv.FormatBool(replayed))
}

// writeIdempotent sends a stored-or-fresh idempotent execution result.
func writeIdempotent(c *gin.Context, res *idempotency.Result) {
	echoWriteHeaders(c, res.Replayed)
	c.Data(res.StatusCode, "application/json", res.Body)
}
