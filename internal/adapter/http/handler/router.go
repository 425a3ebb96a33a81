package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pmc-orchestrator/internal/adapter/http/middleware"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/metrics"
	"pmc-orchestrator/internal/service"
	"pmc-orchestrator/pkg/cursor"
)

// maxRequestBody caps write payloads at 1 MB.
const maxRequestBody = 1 << 20

// RouterDeps holds everything SetupRouter needs.
type RouterDeps struct {
	Orchestrator   *service.Orchestrator
	WebhookSvc     *service.WebhookService
	APIKeys        *service.APIKeyAuth
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	Cursor         *cursor.Codec
	Metrics        *metrics.Metrics
	Registry       prometheus.Gatherer // nil = default gatherer
	HealthCheckers []ports.HealthChecker
	IdemKeyMaxLen  int
	Logger         zerolog.Logger
}

// SetupRouter initialises the gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	// Unauthenticated surface.
	r.GET("/health/live", Live)
	r.GET("/health/ready", Ready(deps.HealthCheckers...))

	gatherer := deps.Registry
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Authenticated v1 surface.
	v1 := r.Group("/v1", middleware.BearerAuth(deps.APIKeys))
	if deps.RateLimiter != nil {
		v1.Use(middleware.RateLimit(deps.RateLimiter, deps.Metrics, deps.Logger))
	}

	// Writes require a valid Idempotency-Key.
	idem := middleware.RequireIdempotencyKey(deps.IdemKeyMaxLen)

	payments := NewPaymentHandler(deps.Orchestrator, deps.Cursor)
	intents := v1.Group("/payment-intents")
	{
		intents.POST("", idem, payments.CreateIntent)
		intents.GET("", payments.ListIntents)
		intents.GET("/:id", payments.GetIntent)
		intents.POST("/:id/confirm", idem, payments.ConfirmIntent)
		intents.POST("/:id/capture", idem, payments.CaptureIntent)
		intents.POST("/:id/cancel", idem, payments.CancelIntent)
	}

	refunds := v1.Group("/refunds")
	{
		refunds.POST("", idem, payments.CreateRefund)
		refunds.GET("", payments.ListRefunds)
	}

	chargebacks := v1.Group("/chargebacks")
	{
		chargebacks.POST("", idem, payments.CreateChargeback)
		chargebacks.GET("", payments.ListChargebacks)
		chargebacks.GET("/:id", payments.GetChargeback)
		chargebacks.POST("/:id/resolve", idem, payments.ResolveChargeback)
	}

	ledger := NewLedgerHandler(deps.Orchestrator, deps.Cursor)
	v1.GET("/ledger-entries", ledger.ListLedgerEntries)
	v1.GET("/reconciliation/summary", ledger.ReconciliationSummary)
	v1.GET("/payment-events", ledger.ListEvents)

	webhooks := NewWebhookHandler(deps.WebhookSvc, deps.Cursor)
	endpoints := v1.Group("/webhook-endpoints")
	{
		endpoints.POST("", idem, webhooks.CreateEndpoint)
		endpoints.GET("", webhooks.ListEndpoints)
		endpoints.GET("/:id", webhooks.GetEndpoint)
		endpoints.PATCH("/:id", idem, webhooks.UpdateEndpoint)
		endpoints.POST("/:id/rotate-secret", idem, webhooks.RotateSecret)
	}

	v1.GET("/webhook-deliveries", webhooks.ListDeliveries)

	deadLetters := v1.Group("/webhook-dead-letters")
	{
		deadLetters.GET("", webhooks.ListDeadLetters)
		deadLetters.POST("/replay-batch", idem, webhooks.ReplayBatch)
		deadLetters.GET("/:id", webhooks.GetDeadLetter)
		deadLetters.POST("/:id/replay", idem, webhooks.ReplayDeadLetter)
	}

	return r
}
