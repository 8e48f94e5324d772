package domain

import "time"

// PlanStatus is the state of a plan in the execution state machine.
//
// Transitions:
//
//	pending_validation -> approved | rejected
//	approved           -> executing | expired
//	executing          -> executed | failed
//
// rejected, executed, failed, and expired are terminal. A plan never moves
// backward, and approved -> executing is the single serialization point:
// it must happen through PlanStore.Claim, a conditional write that succeeds
// for exactly one caller.
type PlanStatus string

const (
	PlanPendingValidation PlanStatus = "pending_validation"
	PlanApproved          PlanStatus = "approved"
	PlanRejected          PlanStatus = "rejected"
	PlanExecuting         PlanStatus = "executing"
	PlanExecuted          PlanStatus = "executed"
	PlanFailed            PlanStatus = "failed"
	PlanExpired           PlanStatus = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanRejected, PlanExecuted, PlanFailed, PlanExpired:
		return true
	}
	return false
}

// CanTransition reports whether the status transition from s to next is
// allowed by the state machine.
func (s PlanStatus) CanTransition(next PlanStatus) bool {
	switch s {
	case PlanPendingValidation:
		return next == PlanApproved || next == PlanRejected
	case PlanApproved:
		return next == PlanExecuting || next == PlanExpired
	case PlanExecuting:
		return next == PlanExecuted || next == PlanFailed
	}
	return false
}

// Plan is a sized, time-boxed arbitrage proposal. It is owned by whichever
// component currently holds its status; ownership transfers atomically with
// the status write.
type Plan struct {
	ID             string
	OpportunityID  string
	Token          string
	Direction      string // "<buy_venue>_to_<sell_venue>"
	SizeUSD        float64
	SizeTokens     float64
	ExpectedProfit float64
	ProfitBps      float64
	BuyVenue       string
	SellVenue      string
	BuyPrice       float64
	SellPrice      float64
	Deadline       time.Time
	Status         PlanStatus
	Validation     *Decision
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the plan's deadline has passed at the given time.
func (p Plan) Expired(now time.Time) bool {
	return !p.Deadline.After(now)
}

// TimeBudget returns the seconds remaining until the deadline, clamped at
// zero. Used in decision-oracle requests.
func (p Plan) TimeBudget(now time.Time) int64 {
	d := p.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}
