package handler

import (
	"github.com/gin-gonic/gin"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/service"
	"pmc-orchestrator/pkg/cursor"
	"pmc-orchestrator/pkg/response"
)

// LedgerHandler serves the ledger, reconciliation and the event log.
type LedgerHandler struct {
	orch  *service.Orchestrator
	codec *cursor.Codec
}

// NewLedgerHandler creates the handler.
func NewLedgerHandler(orch *service.Orchestrator, codec *cursor.Codec) *LedgerHandler {
	return &LedgerHandler{orch: orch, codec: codec}
}

// ListLedgerEntries handles GET /v1/ledger-entries.
func (h *LedgerHandler) ListLedgerEntries(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := ledgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, hasMore, err := h.orch.ListLedgerEntries(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.LedgerEntry{}
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

// ReconciliationSummary handles GET /v1/reconciliation/summary.
func (h *LedgerHandler) ReconciliationSummary(c *gin.Context) {
	filter := ports.LedgerFilter{Currency: queryString(c, "currency")}
	var err error
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.orch.ReconciliationSummary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// ListEvents handles GET /v1/payment-events.
func (h *LedgerHandler) ListEvents(c *gin.Context) {
	page, err := parsePage(c, h.codec)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := ports.EventFilter{
		PaymentIntentID: queryString(c, "payment_intent_id"),
		EventType:       queryString(c, "event_type"),
	}
	if filter.OccurredFrom, err = queryTime(c, "occurred_from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.OccurredTo, err = queryTime(c, "occurred_to"); err != nil {
		response.Error(c, err)
		return
	}

	items, hasMore, err := h.orch.ListEvents(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.Event{}
	}
	lastID := ""
	if len(items) > 0 {
		lastID = items[len(items)-1].ID
	}
	response.List(c, items, buildPagination(h.codec, page.Limit, hasMore, lastID))
}

func ledgerFilter(c *gin.Context) (ports.LedgerFilter, error) {
	filter := ports.LedgerFilter{
		PaymentIntentID: queryString(c, "payment_intent_id"),
		EntryType:       queryString(c, "entry_type"),
		Currency:        queryString(c, "currency"),
	}
	var err error
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		return ports.LedgerFilter{}, err
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		return ports.LedgerFilter{}, err
	}
	return filter, nil
}
