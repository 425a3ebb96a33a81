package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the orchestrator.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Payment metrics
	PaymentsTotal       *prometheus.CounterVec
	PaymentsFailedTotal *prometheus.CounterVec
	IdempotentReplays   *prometheus.CounterVec

	// Provider metrics
	ProviderCallsTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveriesTotal *prometheus.CounterVec
	WebhookRetriesTotal    *prometheus.CounterVec
	WebhookDLQTotal        *prometheus.CounterVec
	WebhookDuration        *prometheus.HistogramVec

	// Event pipeline metrics
	EventsPublishedTotal *prometheus.CounterVec
	EventsConsumedTotal  *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitRejectionsTotal prometheus.Counter
}

// New creates and registers all instruments. A nil registry uses the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_http_requests_total",
				Help: "Total HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pmc_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),

		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_payments_total",
				Help: "Payment intent outcomes by final status",
			},
			[]string{"status"},
		),
		PaymentsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_payments_failed_total",
				Help: "Failed payment intents by failure code",
			},
			[]string{"failure_code"},
		),
		IdempotentReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_idempotent_replays_total",
				Help: "Write requests answered from stored idempotency records",
			},
			[]string{"scope"},
		),

		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_provider_calls_total",
				Help: "Provider call outcomes by provider and failure code",
			},
			[]string{"provider", "operation", "outcome"},
		),

		WebhookDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_webhook_deliveries_total",
				Help: "Webhook delivery attempts by event type and status",
			},
			[]string{"event_type", "status"},
		),
		WebhookRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_webhook_retries_total",
				Help: "Webhook retry attempts beyond the first",
			},
			[]string{"event_type"},
		),
		WebhookDLQTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_webhook_dlq_total",
				Help: "Webhook deliveries dead-lettered by failure reason",
			},
			[]string{"event_type", "failure_reason"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pmc_webhook_duration_seconds",
				Help:    "Webhook send latency per attempt",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"event_type"},
		),

		EventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_events_published_total",
				Help: "Lifecycle events published to the bus",
			},
			[]string{"event_type"},
		),
		EventsConsumedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmc_events_consumed_total",
				Help: "Events consumed from the bus by outcome",
			},
			[]string{"event_type", "outcome"},
		),

		RateLimitRejectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pmc_rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePaymentOutcome records a payment intent reaching a status.
func (m *Metrics) ObservePaymentOutcome(status, failureCode string) {
	m.PaymentsTotal.WithLabelValues(status).Inc()
	if failureCode != "" {
		m.PaymentsFailedTotal.WithLabelValues(failureCode).Inc()
	}
}

// ObserveProviderCall records a provider call outcome. outcome is "ok" or
// the failure code.
func (m *Metrics) ObserveProviderCall(provider, operation string, ok bool, failureCode string) {
	outcome := "ok"
	if !ok {
		outcome = failureCode
		if outcome == "" {
			outcome = "error"
		}
	}
	m.ProviderCallsTotal.WithLabelValues(provider, operation, outcome).Inc()
}

// ObserveWebhookAttempt records one delivery attempt.
func (m *Metrics) ObserveWebhookAttempt(eventType, status string, attempt int, duration time.Duration) {
	m.WebhookDeliveriesTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	if attempt > 1 {
		m.WebhookRetriesTotal.WithLabelValues(eventType).Inc()
	}
}

// ObserveDeadLetter records a delivery giving up into the DLQ.
func (m *Metrics) ObserveDeadLetter(eventType, failureReason string) {
	m.WebhookDLQTotal.WithLabelValues(eventType, failureReason).Inc()
}

// ObserveEventPublished records a publish on the bus.
func (m *Metrics) ObserveEventPublished(eventType string) {
	m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// ObserveEventConsumed records a consumed event; outcome is "ok",
// "duplicate" or "failed".
func (m *Metrics) ObserveEventConsumed(eventType, outcome string) {
	m.EventsConsumedTotal.WithLabelValues(eventType, outcome).Inc()
}
