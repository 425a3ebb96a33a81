package handler

import (
	"github.com/gin-gonic/gin"

	"pmc-orchestrator/internal/adapter/http/dto"
	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/service"
	"pmc-orchestrator/pkg/cursor"
	"pmc-orchestrator/pkg/response"
)

// PaymentHandler serves payment intents, refunds and chargebacks.
type PaymentHandler struct {
	orch  *service.Orchestrator
	codec *cursor.Codec
}

// NewPaymentHandler creates the handler.
func NewPaymentHandler(orch *service.Orchestrator, codec *cursor.Codec) *PaymentHandler {
	return &PaymentHandler{orch: orch, codec: codec}
}

// CreateIntent handles POST /v1/payment-intents.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	payload, err := readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateIntentRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.orch.CreateIntent(c.Request.Context(), idemKey(c), payload, service.CreateIntentRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerID:    req.Customer.ID,
		MethodType:    domain.PaymentMethodType(req.PaymentMethod.Type),
		MethodToken:   req.PaymentMethod.Token,
		CaptureMethod: domain.CaptureMethod(req.CaptureMethod),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

// ConfirmIntent handles POST /v1/payment-intents/{id}/confirm.
func (h *PaymentHandler) ConfirmIntent(c *gin.Context) {
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

	res, err := h.orch.ConfirmIntent(c.Request.Context(), idemKey(c), payload, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

// CaptureIntent handles POST /v1/payment-intents/{id}/capture.
func (h *PaymentHandler) CaptureIntent(c *gin.Context) {
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
	var req dto.CaptureRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.orch.CaptureIntent(c.Request.Context(), idemKey(c), payload, id, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

// CancelIntent handles POST /v1/payment-intents/{id}/cancel.
func (h *PaymentHandler) CancelIntent(c *gin.Context) {
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

	res, err := h.orch.CancelIntent(c.Request.Context(), idemKey(c), payload, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

// GetIntent handles GET /v1/payment-intents/{id}.
func (h *PaymentHandler) GetIntent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	intent, err := h.orch.GetIntent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, intent)
}

// ListIntents handles GET /v1/payment-intents.
func (h *PaymentHandler) ListIntents(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := intentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, hasMore, err := h.orch.ListIntents(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.PaymentIntent{}
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastIntentID(items)))
}

// CreateRefund handles POST /v1/refunds.
func (h *PaymentHandler) CreateRefund(c *gin.Context) {
	payload, err := readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateRefundRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	var reason *domain.RefundReason
	if req.Reason != nil {
		r := domain.RefundReason(*req.Reason)
		reason = &r
	}

	res, err := h.orch.CreateRefund(c.Request.Context(), idemKey(c), payload, service.CreateRefundRequest{
		PaymentIntentID: req.PaymentIntentID,
		Amount:          req.Amount,
		Reason:          reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

// ListRefunds handles GET /v1/refunds.
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := ports.RefundFilter{
		PaymentIntentID: queryString(c, "payment_intent_id"),
		Status:          queryString(c, "status"),
	}
	if filter.AmountMin, err = queryInt64(c, "amount_min"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.AmountMax, err = queryInt64(c, "amount_max"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		response.Error(c, err)
		return
	}

	items, hasMore, err := h.orch.ListRefunds(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.Refund{}
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

// CreateChargeback handles POST /v1/chargebacks.
func (h *PaymentHandler) CreateChargeback(c *gin.Context) {
	payload, err := readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateChargebackRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.orch.CreateChargeback(c.Request.Context(), idemKey(c), payload, service.CreateChargebackRequest{
		PaymentIntentID: req.PaymentIntentID,
		Amount:          req.Amount,
		Reason:          domain.ChargebackReason(req.Reason),
		EvidenceURL:     req.EvidenceURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

// GetChargeback handles GET /v1/chargebacks/{id}.
func (h *PaymentHandler) GetChargeback(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	cb, err := h.orch.GetChargeback(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cb)
}

// ListChargebacks handles GET /v1/chargebacks.
func (h *PaymentHandler) ListChargebacks(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := ports.ChargebackFilter{
		PaymentIntentID: queryString(c, "payment_intent_id"),
		Status:          queryString(c, "status"),
	}
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		response.Error(c, err)
		return
	}

	items, hasMore, err := h.orch.ListChargebacks(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.Chargeback{}
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

// ResolveChargeback handles POST /v1/chargebacks/{id}/resolve.
func (h *PaymentHandler) ResolveChargeback(c *gin.Context) {
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
	var req dto.ResolveChargebackRequest
	if err := bindJSON(payload, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.orch.ResolveChargeback(c.Request.Context(), idemKey(c), payload, id, domain.ChargebackStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeIdempotent(c, res)
}

func intentFilter(c *gin.Context) (ports.IntentFilter, error) {
	filter := ports.IntentFilter{
		Currency:          queryString(c, "currency"),
		Status:            queryString(c, "status"),
		CustomerID:        queryString(c, "customer_id"),
		Provider:          queryString(c, "provider"),
		ProviderReference: queryString(c, "provider_reference"),
		MethodType:        queryString(c, "payment_method_type"),
	}
	var err error
	if filter.AmountMin, err = queryInt64(c, "amount_min"); err != nil {
		return ports.IntentFilter{}, err
	}
	if filter.AmountMax, err = queryInt64(c, "amount_max"); err != nil {
		return ports.IntentFilter{}, err
	}
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		return ports.IntentFilter{}, err
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		return ports.IntentFilter{}, err
	}
	return filter, nil
}

func lastIntentID(items []domain.PaymentIntent) string {
	if len(items) == 0 {
		return ""
	}
	return items[len(items)-1].ID
}
