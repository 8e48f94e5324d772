package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists detected opportunities. Price fields are
// immutable; only the status column changes, and always through a
// conditional write keyed on the expected prior status.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	GetByID(ctx context.Context, id string) (Opportunity, error)

	// ListDetected returns up to limit opportunities still in the detected
	// state, newest first.
	ListDetected(ctx context.Context, limit int) ([]Opportunity, error)
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)

	// Transition moves an opportunity from one status to another. It returns
	// ErrClaimLost when the row is no longer in the expected prior status,
	// which callers treat as another planner instance having taken it.
	Transition(ctx context.Context, id string, from, to OpportunityStatus) error

	// ListBefore returns opportunities detected strictly before the cutoff,
	// for archival.
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	Aggregate(ctx context.Context, since time.Time) (OpportunityStats, error)
}

// PlanStore persists plans. All status transitions are single-row
// conditional writes; the store is the only synchronization point between
// pipeline processes.
type PlanStore interface {
	Create(ctx context.Context, p Plan) error
	GetByID(ctx context.Context, id string) (Plan, error)

	// ListExecutable returns up to limit plans with status approved and
	// deadline strictly after now, ordered by expected profit descending.
	ListExecutable(ctx context.Context, now time.Time, limit int) ([]Plan, error)

	// ListActive returns plans with status in {approved, executing}.
	ListActive(ctx context.Context, opts ListOpts) ([]Plan, error)
	ListRecent(ctx context.Context, limit int) ([]Plan, error)

	// Claim atomically transitions a plan from approved to executing. The
	// deadline is re-checked inside the conditional write, not only at read
	// time. Returns ErrClaimLost when the plan was already claimed, already
	// terminal, or expired.
	Claim(ctx context.Context, id string, now time.Time) error

	// Finish transitions a claimed plan from executing to executed or
	// failed. Returns ErrClaimLost if the plan is not currently executing.
	Finish(ctx context.Context, id string, to PlanStatus) error

	// ExpireDue transitions every plan still approved with deadline at or
	// before now to expired, returning the number of rows swept.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	ListBefore(ctx context.Context, before time.Time) ([]Plan, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ExecutionStore persists the append-only execution history.
type ExecutionStore interface {
	Insert(ctx context.Context, exec Execution) error
	GetByPlanID(ctx context.Context, planID string) (Execution, error)
	ListRecent(ctx context.Context, limit int) ([]Execution, error)
	Aggregate(ctx context.Context, since time.Time) (ExecutionStats, error)

	ListBefore(ctx context.Context, before time.Time) ([]Execution, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log. Bundle staging outcomes and
// gate rejections are recorded here independent of plan rows.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
