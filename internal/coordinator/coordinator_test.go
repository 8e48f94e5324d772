package coordinator

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/settle"
	"github.com/alanyoungcy/crossarb/internal/stager"
	"github.com/alanyoungcy/crossarb/internal/store/memory"
)

// includingSubmitter reports inclusion on the first poll.
type includingSubmitter struct{}

func (includingSubmitter) Submit(_ context.Context, b domain.Bundle) (string, error) {
	return b.ID, nil
}

func (includingSubmitter) Status(context.Context, string) (domain.BundleStatus, string, error) {
	return domain.BundleIncluded, "19000001", nil
}

// droppingSubmitter never includes.
type droppingSubmitter struct{}

func (droppingSubmitter) Submit(_ context.Context, b domain.Bundle) (string, error) {
	return b.ID, nil
}

func (droppingSubmitter) Status(context.Context, string) (domain.BundleStatus, string, error) {
	return domain.BundlePending, "", nil
}

type coordFixture struct {
	coord *Coordinator
	plans *memory.PlanStore
	execs *memory.ExecutionStore
	audit *memory.AuditStore
}

func newFixture(t *testing.T, submitter stager.Submitter) *coordFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	f := &coordFixture{
		plans: memory.NewPlanStore(),
		execs: memory.NewExecutionStore(),
		audit: memory.NewAuditStore(),
	}

	st := stager.New(stager.Config{
		PollInterval:  time.Millisecond,
		MaxAttempts:   3,
		MaxBlockAhead: 2,
	}, submitter, f.audit, logger)

	f.coord = New(Config{
		Interval:      15 * time.Second,
		Batch:         5,
		MaxConcurrent: 5,
	}, f.plans, f.execs, st, settle.NewSimSettler(), nil, nil, logger)
	return f
}

func seedPlan(t *testing.T, plans *memory.PlanStore, id string, profit float64, deadline time.Time) domain.Plan {
	t.Helper()
	now := time.Now().UTC()
	p := domain.Plan{
		ID:             id,
		OpportunityID:  "opp-" + id,
		Token:          "WETH",
		Direction:      "uniswap_v3_to_sushiswap",
		SizeUSD:        10_000,
		SizeTokens:     4.02,
		ExpectedProfit: profit,
		ProfitBps:      80,
		BuyVenue:       "uniswap_v3",
		SellVenue:      "sushiswap",
		BuyPrice:       2485.50,
		SellPrice:      2510.25,
		Deadline:       deadline,
		Status:         domain.PlanApproved,
		Validation:     &domain.Decision{Approved: true, Confidence: 85},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, plans.Create(context.Background(), p))
	return p
}

func TestTickExecutesApprovedPlan(t *testing.T) {
	f := newFixture(t, includingSubmitter{})
	ctx := context.Background()

	seedPlan(t, f.plans, "p1", 100, time.Now().Add(5*time.Minute))
	require.NoError(t, f.coord.Tick(ctx))

	plan, _ := f.plans.GetByID(ctx, "p1")
	assert.Equal(t, domain.PlanExecuted, plan.Status)

	exec, err := f.execs.GetByPlanID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, exec.Status)
	assert.Equal(t, 100.0, exec.ExpectedProfit)
	assert.InDelta(t, 95.0, exec.ActualProfit, 1e-9)
	assert.Equal(t, 15.0, exec.ResourceCost)
	assert.NotEmpty(t, exec.SettlementRef)
	assert.NotEmpty(t, exec.BundleRef)
}

func TestTickFailsPlanWhenBundleNotIncluded(t *testing.T) {
	f := newFixture(t, droppingSubmitter{})
	ctx := context.Background()

	seedPlan(t, f.plans, "p1", 100, time.Now().Add(5*time.Minute))
	require.NoError(t, f.coord.Tick(ctx))

	plan, _ := f.plans.GetByID(ctx, "p1")
	assert.Equal(t, domain.PlanFailed, plan.Status)

	exec, err := f.execs.GetByPlanID(ctx, "p1")
	require.NoError(t, err, "failed plans still get an execution row")
	assert.Equal(t, domain.ExecutionFailed, exec.Status)
	assert.Equal(t, "bundle not included", exec.FailureReason)
	assert.Zero(t, exec.ActualProfit)

	entries, _ := f.audit.List(ctx, domain.ListOpts{Limit: 10})
	require.Len(t, entries, 1)
	assert.Equal(t, "bundle_failed", entries[0].Event)
}

func TestTickSweepsExpiredPlans(t *testing.T) {
	f := newFixture(t, includingSubmitter{})
	ctx := context.Background()

	seedPlan(t, f.plans, "stale", 100, time.Now().Add(-time.Minute))
	require.NoError(t, f.coord.Tick(ctx))

	plan, _ := f.plans.GetByID(ctx, "stale")
	assert.Equal(t, domain.PlanExpired, plan.Status)

	_, err := f.execs.GetByPlanID(ctx, "stale")
	assert.ErrorIs(t, err, domain.ErrNotFound, "expired plans are never executed")
}

func TestTickTakesTopProfitPlans(t *testing.T) {
	f := newFixture(t, includingSubmitter{})
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Minute)

	for i, profit := range []float64{10, 20, 30, 40, 50, 60, 70} {
		seedPlan(t, f.plans, string(rune('a'+i)), profit, deadline)
	}
	require.NoError(t, f.coord.Tick(ctx))

	execs, _ := f.execs.ListRecent(ctx, 10)
	require.Len(t, execs, 5, "batch is capped at five plans per tick")

	for _, e := range execs {
		assert.GreaterOrEqual(t, e.ExpectedProfit, 30.0, "lowest-profit plans wait for the next tick")
	}
}

func TestTickIdempotentAcrossInstances(t *testing.T) {
	f := newFixture(t, includingSubmitter{})
	ctx := context.Background()

	// second coordinator sharing the same stores
	second := New(Config{
		Interval:      15 * time.Second,
		Batch:         5,
		MaxConcurrent: 5,
	}, f.plans, f.execs, stager.New(stager.Config{
		PollInterval:  time.Millisecond,
		MaxAttempts:   3,
		MaxBlockAhead: 2,
	}, includingSubmitter{}, f.audit, slog.New(slog.DiscardHandler)),
		settle.NewSimSettler(), nil, nil, slog.New(slog.DiscardHandler))

	seedPlan(t, f.plans, "p1", 100, time.Now().Add(5*time.Minute))

	done := make(chan error, 2)
	go func() { done <- f.coord.Tick(ctx) }()
	go func() { done <- second.Tick(ctx) }()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	// exactly one execution row despite two racing coordinators
	execs, _ := f.execs.ListRecent(ctx, 10)
	assert.Len(t, execs, 1)

	plan, _ := f.plans.GetByID(ctx, "p1")
	assert.Equal(t, domain.PlanExecuted, plan.Status)
}
