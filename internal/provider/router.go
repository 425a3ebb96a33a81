package provider

import (
	"errors"
	"time"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/pkg/apperror"

	"github.com/sony/gobreaker"
)

// errTransientOutcome feeds the breaker's failure counter. It never leaves
// this package.
var errTransientOutcome = errors.New("transient provider outcome")

// Router selects authorization candidates per payment method and gates
// them behind one circuit breaker per provider. A breaker counts only
// consecutive transient failures; a success or a terminal decline clears
// the counter. An open breaker removes the provider from candidate
// selection until the cooldown elapses.
type Router struct {
	providers  map[string]ports.Provider
	priorities map[string][]string
	defaultP   string
	breakers   map[string]*gobreaker.CircuitBreaker
}

// RouterConfig carries the selection and breaker tuning.
type RouterConfig struct {
	Default    string
	Priorities map[string][]string // method -> ordered provider names
	Threshold  uint32
	Cooldown   time.Duration
}

// NewRouter registers the providers and builds their breakers.
func NewRouter(cfg RouterConfig, providers ...ports.Provider) *Router {
	r := &Router{
		providers:  make(map[string]ports.Provider, len(providers)),
		priorities: cfg.Priorities,
		defaultP:   cfg.Default,
		breakers:   make(map[string]*gobreaker.CircuitBreaker, len(providers)),
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
		r.breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Threshold
			},
		})
	}
	return r
}

// Candidates returns the ordered, breaker-gated providers for the method.
func (r *Router) Candidates(method domain.PaymentMethodType) ([]ports.Provider, error) {
	names := append([]string{}, r.priorities[string(method)]...)
	listed := make(map[string]struct{}, len(names))
	for _, n := range names {
		listed[n] = struct{}{}
	}
	if _, ok := listed[r.defaultP]; !ok && r.defaultP != "" {
		names = append(names, r.defaultP)
	}

	var supported []ports.Provider
	for _, n := range names {
		p, ok := r.providers[n]
		if !ok || !p.Supports(method) {
			continue
		}
		supported = append(supported, p)
	}
	if len(supported) == 0 {
		return nil, apperror.ErrProviderNotAvailable(string(method))
	}

	var eligible []ports.Provider
	for _, p := range supported {
		if r.breakers[p.Name()].State() == gobreaker.StateOpen {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil, apperror.ErrProviderCircuitOpen(string(method))
	}
	return eligible, nil
}

// Provider returns a registered provider by name regardless of breaker
// state, for captures and refunds on already-authorized intents.
func (r *Router) Provider(name string) (ports.Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// RecordOutcome updates the provider's breaker. Transient failures count;
// successes and terminal declines clear the consecutive counter.
func (r *Router) RecordOutcome(providerName string, ok bool, failureCode string) {
	cb, found := r.breakers[providerName]
	if !found {
		return
	}
	// Execute is a no-op (ErrOpenState) while the breaker is open, which
	// is fine: open providers are excluded from selection anyway.
	_, _ = cb.Execute(func() (any, error) {
		if !ok && IsTransient(failureCode) {
			return nil, errTransientOutcome
		}
		return nil, nil
	})
}
