package service

import (
	"context"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"
)

// RuleRiskEngine is a pure decision function over intent attributes: a
// customer blocklist denies outright, and amounts at or above the review
// threshold are flagged for manual review. A zero threshold disables the
// amount rule.
type RuleRiskEngine struct {
	blocked      map[string]struct{}
	reviewAmount int64
}

// NewRuleRiskEngine builds the engine from the configured blocklist and
// review threshold.
func NewRuleRiskEngine(blockedCustomers []string, reviewAmount int64) *RuleRiskEngine {
	blocked := make(map[string]struct{}, len(blockedCustomers))
	for _, id := range blockedCustomers {
		blocked[id] = struct{}{}
	}
	return &RuleRiskEngine{blocked: blocked, reviewAmount: reviewAmount}
}

// Evaluate returns the verdict for the intent. Deny wins over review.
func (e *RuleRiskEngine) Evaluate(_ context.Context, intent *domain.PaymentIntent) ports.RiskDecision {
	if _, ok := e.blocked[intent.CustomerID]; ok {
		return ports.RiskDecision{Outcome: ports.RiskDeny, Reason: "customer_blocked"}
	}
	if e.reviewAmount > 0 && intent.Amount >= e.reviewAmount {
		return ports.RiskDecision{Outcome: ports.RiskReview, Reason: "amount_over_review_threshold"}
	}
	return ports.RiskDecision{Outcome: ports.RiskAllow}
}
