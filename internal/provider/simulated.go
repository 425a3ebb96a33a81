package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
)

// Simulated is an in-process provider adapter whose outcomes are scripted
// by payment token. It backs local environments and the test suite; real
// gateway adapters implement the same ports.Provider interface.
type Simulated struct {
	name     string
	methods  map[domain.PaymentMethodType]struct{}
	failures map[string]string // token -> failure code
	seq      atomic.Uint64
}

// SimulatedOption customizes a simulated provider.
type SimulatedOption func(*Simulated)

// WithFailingToken scripts a decline: authorizations carrying token fail
// with the given code.
func WithFailingToken(token, code string) SimulatedOption {
	return func(s *Simulated) { s.failures[token] = code }
}

// NewSimulated creates a simulated provider supporting the given methods.
func NewSimulated(name string, methods []domain.PaymentMethodType, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		name:     name,
		methods:  make(map[domain.PaymentMethodType]struct{}, len(methods)),
		failures: make(map[string]string),
	}
	for _, m := range methods {
		s.methods[m] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) Name() string { return s.name }

func (s *Simulated) Supports(method domain.PaymentMethodType) bool {
	_, ok := s.methods[method]
	return ok
}

func (s *Simulated) Authorize(_ context.Context, req ports.AuthorizeRequest) (*ports.ProviderResult, error) {
	if code, ok := s.failures[req.Token]; ok {
		return &ports.ProviderResult{OK: false, FailureCode: code}, nil
	}
	return &ports.ProviderResult{OK: true, Reference: s.reference()}, nil
}

func (s *Simulated) Capture(_ context.Context, reference string, _ int64, _ string) (*ports.ProviderResult, error) {
	if reference == "" {
		return &ports.ProviderResult{OK: false, FailureCode: FailureProviderUnavailable}, nil
	}
	return &ports.ProviderResult{OK: true, Reference: reference}, nil
}

func (s *Simulated) Refund(_ context.Context, reference string, _ int64, _ string) (*ports.ProviderResult, error) {
	if reference == "" {
		return &ports.ProviderResult{OK: false, FailureCode: FailureProviderUnavailable}, nil
	}
	return &ports.ProviderResult{OK: true, Reference: reference}, nil
}

func (s *Simulated) reference() string {
	return fmt.Sprintf("%s_auth_%06d", s.name, s.seq.Add(1))
}
