package gate

import (
	"context"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// RuleOracle is a local, deterministic oracle used when no external decision
// service is configured. Its heuristics mirror the remote service closely
// enough for development: thin margins and tight time budgets lose
// confidence.
type RuleOracle struct{}

// NewRuleOracle creates a RuleOracle.
func NewRuleOracle() *RuleOracle {
	return &RuleOracle{}
}

// Decide scores the request from its profit margin and time budget.
func (o *RuleOracle) Decide(_ context.Context, req domain.DecisionRequest) (domain.Decision, error) {
	if req.ExpectedProfit <= 0 {
		return domain.Decision{
			Approved: false,
			Reason:   "non-positive expected profit",
		}, nil
	}
	if req.TimeBudgetSeconds < 30 {
		return domain.Decision{
			Approved:   false,
			Confidence: 40,
			Reason:     "insufficient time budget",
		}, nil
	}

	// Confidence grows with profit margin: 50 at break-even, +1 per bps,
	// capped at 95.
	confidence := 50 + int(req.ProfitBps)
	if confidence > 95 {
		confidence = 95
	}

	if confidence <= 70 {
		return domain.Decision{
			Approved:             false,
			Confidence:           confidence,
			Reason:               "profit margin too thin",
			SuggestedAdjustments: "wait for a wider spread or reduce size",
		}, nil
	}

	return domain.Decision{
		Approved:   true,
		Confidence: confidence,
		Reason:     "margin and time budget acceptable",
	}, nil
}
