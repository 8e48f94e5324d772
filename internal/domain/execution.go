package domain

import "time"

// ExecutionStatus is the outcome of one execution attempt.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution records one completed execution attempt for a plan. Rows are
// append-only; exactly one row is written per claimed plan regardless of
// outcome.
type Execution struct {
	ID             string
	PlanID         string
	SettlementRef  string
	BundleRef      string
	ExpectedProfit float64
	ActualProfit   float64
	ResourceCost   float64
	Duration       time.Duration
	Status         ExecutionStatus
	FailureReason  string
	CreatedAt      time.Time
}

// Settlement is the result of the exchange/settlement step performed after a
// bundle has been staged.
type Settlement struct {
	Ref          string
	ActualProfit float64
	ResourceCost float64
}

// ExecutionStats aggregates execution outcomes over a time window.
type ExecutionStats struct {
	Count       int64
	Completed   int64
	Failed      int64
	TotalProfit float64
	AvgProfit   float64
	TotalCost   float64
}

// OpportunityStats aggregates detected opportunities over a time window.
type OpportunityStats struct {
	Count        int64
	AvgSpreadBps float64
	MaxSpreadBps float64
}
