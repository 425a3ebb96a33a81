package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"pmc-orchestrator/config"
	httpHandler "pmc-orchestrator/internal/adapter/http/handler"
	pgStorage "pmc-orchestrator/internal/adapter/storage/postgres"
	redisStorage "pmc-orchestrator/internal/adapter/storage/redis"
	"pmc-orchestrator/internal/clock"
	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/eventbus"
	"pmc-orchestrator/internal/idempotency"
	"pmc-orchestrator/internal/metrics"
	"pmc-orchestrator/internal/provider"
	"pmc-orchestrator/internal/ratelimit"
	"pmc-orchestrator/internal/service"
	"pmc-orchestrator/pkg/cursor"
	"pmc-orchestrator/pkg/logger"
)

// Advisory-lock tuning for distributed idempotency locking.
const (
	lockTTL   = 30 * time.Second
	lockRetry = 50 * time.Millisecond

	recoveryBatch   = 256
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("events_mode", cfg.Events.Mode).
		Msg("starting pmc-orchestrator")

	ctx := context.Background()
	sysClock := clock.System{}

	// Backends.
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to Redis")
	}
	defer rdb.Close()

	// Repositories.
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	outboxRepo := pgStorage.NewOutboxRepo(pool)

	// Idempotency: the distributed flavor shares records and locks through
	// Redis so multiple workers behave as one.
	var (
		idemRepo  ports.IdempotencyRepository
		idemLocks ports.KeyLocker
	)
	if cfg.Idempotency.Distributed {
		idemRepo = redisStorage.NewIdempotencyStore(rdb, cfg.Idempotency.TTL)
		idemLocks = redisStorage.NewLocker(rdb, lockTTL, lockRetry)
	} else {
		idemRepo = pgStorage.NewIdempotencyRepo(pool, cfg.Idempotency.TTL, sysClock)
		idemLocks = idempotency.NewKeyLocks()
	}
	executor := idempotency.NewExecutor(idemRepo, idemLocks)

	var limiter ports.RateLimiter
	if cfg.RateLimit.Distributed {
		limiter = redisStorage.NewRateLimitStore(rdb, int64(cfg.RateLimit.MaxRequests), cfg.RateLimit.Window(), sysClock)
	} else {
		limiter = ratelimit.NewLocalBucket(int64(cfg.RateLimit.MaxRequests), cfg.RateLimit.Window(), sysClock)
	}

	codec, err := cursor.New(cfg.Cursor.Secrets...)
	if err != nil {
		log.Fatal().Err(err).Msg("building cursor codec")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Event bus: synchronous fan-out in memory mode, outbox + stream +
	// inbox-deduplicated consumer in durable mode.
	var (
		bus     ports.EventBus
		durable *eventbus.Durable
	)
	if cfg.Events.Mode == "durable" {
		stream := redisStorage.NewStream(rdb, cfg.Events.Stream, cfg.Events.ConsumerGroup)
		durable = eventbus.NewDurable(outboxRepo, stream, sysClock, eventbus.DurableConfig{
			ConsumerGroup: cfg.Events.ConsumerGroup,
			BatchSize:     cfg.Events.BatchSize,
			BlockTimeout:  cfg.Events.BlockTimeout,
		}, log)
		bus = durable
	} else {
		bus = eventbus.NewMemory(log)
	}

	// Providers. The simulated adapters script declines by token, matching
	// the sandbox conventions real gateways expose.
	simulatedA := provider.NewSimulated("provider_a",
		[]domain.PaymentMethodType{domain.MethodCard, domain.MethodPix, domain.MethodBoleto},
		provider.WithFailingToken("tok_test_declined", provider.FailureCardDeclined),
		provider.WithFailingToken("tok_test_insufficient", provider.FailureInsufficientFunds),
	)
	simulatedB := provider.NewSimulated("provider_b",
		[]domain.PaymentMethodType{domain.MethodCard, domain.MethodWallet, domain.MethodBankTransfer},
		provider.WithFailingToken("tok_test_transient", provider.FailureTransientNetworkError),
		provider.WithFailingToken("tok_test_declined", provider.FailureCardDeclined),
	)
	router := provider.NewRouter(provider.RouterConfig{
		Default:    cfg.Providers.Default,
		Priorities: cfg.Providers.Priorities,
		Threshold:  uint32(cfg.Providers.Breaker.Threshold),
		Cooldown:   cfg.Providers.Breaker.Cooldown,
	}, simulatedA, simulatedB)

	risk := service.NewRuleRiskEngine(cfg.Risk.BlockedCustomers, cfg.Risk.ReviewAmount)

	// Services.
	dispatcher := service.NewWebhookDispatcher(webhookRepo, &http.Client{}, cfg.Webhook, sysClock, m, log)
	bus.Subscribe(dispatcher.Handle)

	orchestrator := service.NewOrchestrator(paymentRepo, router, risk, bus, executor, sysClock, m, log)
	webhookSvc := service.NewWebhookService(webhookRepo, dispatcher, sysClock, log)

	apiKeys := service.NewAPIKeyAuth(cfg.Auth.APIKeyHashes)

	// Durable pipeline: republish outbox rows stranded by a crash, then
	// start consuming before traffic arrives.
	if durable != nil {
		recovered, err := durable.RecoverUnpublished(ctx, recoveryBatch)
		if err != nil {
			log.Fatal().Err(err).Msg("recovering unpublished outbox rows")
		}
		if recovered > 0 {
			log.Info().Int("events", recovered).Msg("republished stranded outbox rows")
		}

		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "pmc-worker"
		}
		if err := durable.Start(ctx, hostname); err != nil {
			log.Fatal().Err(err).Msg("starting event consumer")
		}
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	engine := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Orchestrator:   orchestrator,
		WebhookSvc:     webhookSvc,
		APIKeys:        apiKeys,
		RateLimiter:    limiter,
		Cursor:         codec,
		Metrics:        m,
		Registry:       registry,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		IdemKeyMaxLen:  cfg.Idempotency.KeyMaxLength,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// Shut down in reverse order of startup: drain HTTP first so no new
	// events are produced, then stop the consumer, then close clients via
	// the deferred pool/rdb closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced HTTP shutdown")
	}
	if durable != nil {
		durable.Stop()
	}

	log.Info().Msg("server exited")
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
