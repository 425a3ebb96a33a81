package response

import (
	"errors"
	"net/http"

	"pmc-orchestrator/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key carrying the request id.
const CtxRequestID = "request_id"

// Pagination is the listing envelope metadata.
type Pagination struct {
	Limit      int     `json:"limit"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// ListResponse is the envelope for every cursor-paginated listing.
type ListResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ErrorBody is the stable error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable code and a human-readable message.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// OK sends a 200 response with the resource as the body.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with the resource as the body.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// List sends a 200 response with the pagination envelope.
func List(c *gin.Context, data any, p Pagination) {
	c.JSON(http.StatusOK, ListResponse{Data: data, Pagination: p})
}

// Error maps an error to the envelope. *apperror.AppError carries its own
// status and code; anything else becomes internal_server_error.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{Error: ErrorDetail{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: RequestID(c),
		}})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
		Code:      "internal_server_error",
		Message:   "Internal server error",
		RequestID: RequestID(c),
	}})
}

// RequestID retrieves the request id from context, or generates one.
func RequestID(c *gin.Context) string {
	if id, exists := c.Get(CtxRequestID); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
