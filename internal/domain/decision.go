package domain

// DecisionRequest is the plan summary sent to the decision oracle.
type DecisionRequest struct {
	Token             string  `json:"token"`
	SizeUSD           float64 `json:"size_usd"`
	SizeTokens        float64 `json:"size_tokens"`
	Direction         string  `json:"direction"`
	BuyPrice          float64 `json:"buy_price"`
	SellPrice         float64 `json:"sell_price"`
	ExpectedProfit    float64 `json:"expected_profit"`
	ProfitBps         float64 `json:"profit_bps"`
	TimeBudgetSeconds int64   `json:"time_budget_seconds"`
}

// Decision is the oracle's verdict on a draft plan. The raw decision is
// attached to the plan for audit; a plan is never persisted as approved
// without one.
type Decision struct {
	Approved             bool   `json:"approved"`
	Confidence           int    `json:"confidence"`
	Reason               string `json:"reason"`
	SuggestedAdjustments string `json:"suggested_adjustments,omitempty"`
}
