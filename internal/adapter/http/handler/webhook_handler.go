package handler

import (
	"github.com/gin-gonic/gin"

	"pmc-orchestrator/internal/adapter/http/dto"
	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/service"
	"pmc-orchestrator/pkg/apperror"
	"pmc-orchestrator/pkg/cursor"
	"pmc-orchestrator/pkg/response"
)

// WebhookHandler serves webhook endpoints, the delivery log and the DLQ.
type WebhookHandler struct {
	svc   *service.WebhookService
	codec *cursor.Codec
}

// NewWebhookHandler creates the handler.
func NewWebhookHandler(svc *service.WebhookService, codec *cursor.Codec) *WebhookHandler {
	return &WebhookHandler{svc: svc, codec: codec}
}

// CreateEndpoint handles POST /v1/webhook-endpoints. The signing secret is
// disclosed in this response only.
func (h *WebhookHandler) CreateEndpoint(c *gin.Context) {
	payload, err := readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateEndpointRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	endpoint, err := h.svc.CreateEndpoint(c.Request.Context(), req.URL, req.Events)
	if err != nil {
		response.Error(c, err)
		return
	}
	echoWriteHeaders(c, false)
	setETag(c, endpoint)
	response.Created(c, dto.ToEndpointResponse(endpoint, true))
}

// GetEndpoint handles GET /v1/webhook-endpoints/{id}.
func (h *WebhookHandler) GetEndpoint(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	endpoint, err := h.svc.GetEndpoint(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	setETag(c, endpoint)
	response.OK(c, dto.ToEndpointResponse(endpoint, false))
}

// ListEndpoints handles GET /v1/webhook-endpoints.
func (h *WebhookHandler) ListEndpoints(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter ports.EndpointFilter
	if raw := c.Query("enabled"); raw != "" {
		switch raw {
		case "true", "false":
			enabled := raw == "true"
			filter.Enabled = &enabled
		default:
			response.Error(c, apperror.ErrInvalidField("enabled", "enabled must be true or false"))
			return
		}
	}

	items, hasMore, err := h.svc.ListEndpoints(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.EndpointResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.ToEndpointResponse(&items[i], false))
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, out, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

// UpdateEndpoint handles PATCH /v1/webhook-endpoints/{id} under If-Match.
func (h *WebhookHandler) UpdateEndpoint(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateEndpointRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	endpoint, err := h.svc.UpdateEndpoint(c.Request.Context(), id, c.GetHeader("If-Match"), service.EndpointPatch{
		URL:     req.URL,
		Events:  req.Events,
		Enabled: req.Enabled,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	echoWriteHeaders(c, false)
	setETag(c, endpoint)
	response.OK(c, dto.ToEndpointResponse(endpoint, false))
}

// RotateSecret handles POST /v1/webhook-endpoints/{id}/rotate-secret under
// If-Match. The fresh secret is disclosed in this response only.
func (h *WebhookHandler) RotateSecret(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	endpoint, err := h.svc.RotateSecret(c.Request.Context(), id, c.GetHeader("If-Match"))
	if err != nil {
		response.Error(c, err)
		return
	}
	echoWriteHeaders(c, false)
	setETag(c, endpoint)
	response.OK(c, dto.ToEndpointResponse(endpoint, true))
}

// ListDeliveries handles GET /v1/webhook-deliveries.
func (h *WebhookHandler) ListDeliveries(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := ports.DeliveryFilter{
		EndpointID: queryString(c, "endpoint_id"),
		EventID:    queryString(c, "event_id"),
		EventType:  queryString(c, "event_type"),
		Status:     queryString(c, "status"),
	}

	items, hasMore, err := h.svc.ListDeliveries(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.WebhookDelivery{}
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

// ListDeadLetters handles GET /v1/webhook-dead-letters.
func (h *WebhookHandler) ListDeadLetters(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := ports.DeadLetterFilter{
		Status:     queryString(c, "status"),
		EventType:  queryString(c, "event_type"),
		EndpointID: queryString(c, "endpoint_id"),
	}

	items, hasMore, err := h.svc.ListDeadLetters(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.WebhookDeadLetter{}
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

// GetDeadLetter handles GET /v1/webhook-dead-letters/{id}.
func (h *WebhookHandler) GetDeadLetter(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	dl, err := h.svc.GetDeadLetter(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dl)
}

// ReplayDeadLetter handles POST /v1/webhook-dead-letters/{id}/replay.
func (h *WebhookHandler) ReplayDeadLetter(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	dl, err := h.svc.Replay(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	echoWriteHeaders(c, false)
	response.OK(c, dl)
}

// ReplayBatch handles POST /v1/webhook-dead-letters/replay-batch.
func (h *WebhookHandler) ReplayBatch(c *gin.Context) {
	payload, err := readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReplayBatchRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.svc.ReplayBatch(c.Request.Context(), service.ReplayBatchRequest{
		Limit:      req.Limit,
		Status:     req.Status,
		EventType:  req.EventType,
		EndpointID: req.EndpointID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	echoWriteHeaders(c, false)
	response.OK(c, result)
}

// setETag writes the endpoint's quoted entity tag.
func setETag(c *gin.Context, e *domain.WebhookEndpoint) {
	c.Header("ETag", `"`+e.ETag()+`"`)
}
