package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmc-orchestrator/pkg/apperror"
	"pmc-orchestrator/pkg/cursor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/list?"+rawQuery, nil)
	return c
}

func testCodec(t *testing.T) *cursor.Codec {
	t.Helper()
	codec, err := cursor.New("test-cursor-secret")
	require.NoError(t, err)
	return codec
}

func TestParsePage(t *testing.T) {
	codec := testCodec(t)

	page, err := parsePage(testContext(t, ""), codec)
	require.NoError(t, err)
	assert.Equal(t, defaultPageLimit, page.Limit)
	assert.Empty(t, page.AfterID)

	page, err = parsePage(testContext(t, "limit=500"), codec)
	require.NoError(t, err)
	assert.Equal(t, 500, page.Limit)

	for _, raw := range []string{"limit=0", "limit=5001", "limit=abc"} {
		_, err = parsePage(testContext(t, raw), codec)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr, raw)
		assert.Equal(t, "invalid_limit", appErr.Code)
	}

	token, err := codec.Encode("pi_abc123")
	require.NoError(t, err)
	page, err = parsePage(testContext(t, "cursor="+token), codec)
	require.NoError(t, err)
	assert.Equal(t, "pi_abc123", page.AfterID)

	_, err = parsePage(testContext(t, "cursor=not.valid"), codec)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "invalid_cursor", appErr.Code)
}

func TestBuildPagination(t *testing.T) {
	codec := testCodec(t)

	p := buildPagination(codec, 20, false, "pi_last")
	assert.False(t, p.HasMore)
	assert.Nil(t, p.NextCursor)

	p = buildPagination(codec, 20, true, "pi_last")
	assert.True(t, p.HasMore)
	require.NotNil(t, p.NextCursor)

	decoded, err := codec.Decode(*p.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "pi_last", decoded)
}

func TestQueryTime(t *testing.T) {
	got, err := queryTime(testContext(t, "created_from=2024-06-01T12:00:00Z"), "created_from")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())

	got, err = queryTime(testContext(t, ""), "created_from")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = queryTime(testContext(t, "created_from=yesterday"), "created_from")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "invalid_created_from", appErr.Code)
}

func TestQueryInt64(t *testing.T) {
	got, err := queryInt64(testContext(t, "amount_min=1099"), "amount_min")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1099), *got)

	_, err = queryInt64(testContext(t, "amount_min=lots"), "amount_min")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "invalid_amount_min", appErr.Code)
}

func TestPathID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "pi_ok-1.2:3"}}
	id, err := pathID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, "pi_ok-1.2:3", id)

	c.Params = gin.Params{{Key: "id", Value: "bad id"}}
	_, err = pathID(c, "id")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "invalid_path_parameter", appErr.Code)
}
