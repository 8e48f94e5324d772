package planner

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/gate"
	"github.com/alanyoungcy/crossarb/internal/optimizer"
	"github.com/alanyoungcy/crossarb/internal/store/memory"
)

type fixedOracle struct {
	decision domain.Decision
}

func (f *fixedOracle) Decide(context.Context, domain.DecisionRequest) (domain.Decision, error) {
	return f.decision, nil
}

type plannerFixture struct {
	planner *Planner
	opps    *memory.OpportunityStore
	plans   *memory.PlanStore
	audit   *memory.AuditStore
}

func newFixture(t *testing.T, oracle gate.Oracle) *plannerFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	opt := optimizer.New(optimizer.Config{
		CandidateSizesUSD: []float64{1_000, 5_000, 10_000, 25_000, 50_000},
		MaxTradeSizeUSD:   50_000,
		MinProfitBps:      20,
		BridgeFeeUSD:      8,
		BaseGasUSD:        8,
		LargeTradeGasUSD:  5,
		DefaultSlipBps:    10,
		SlippageBaseBps:   map[string]float64{"WETH": 5},
	})
	g := gate.New(gate.Config{
		Timeout:       time.Second,
		ConfidenceMin: 70,
	}, oracle, nil, logger)

	f := &plannerFixture{
		opps:  memory.NewOpportunityStore(),
		plans: memory.NewPlanStore(),
		audit: memory.NewAuditStore(),
	}
	f.planner = New(Config{
		Interval:       5 * time.Second,
		Batch:          10,
		DeadlineWindow: 5 * time.Minute,
		DedupTTL:       2 * time.Minute,
	}, opt, g, f.opps, f.plans, f.audit, nil, logger)
	return f
}

func wideOpp() domain.Opportunity {
	return domain.Opportunity{
		ID:             uuid.NewString(),
		Token:          "WETH",
		VenueA:         "uniswap_v3",
		VenueB:         "sushiswap",
		PriceA:         2485.50,
		PriceB:         2510.25,
		SpreadBps:      99.58,
		ProfitEstimate: 9.96,
		Status:         domain.OpportunityDetected,
		DetectedAt:     time.Now().UTC(),
	}
}

func TestRunCreatesApprovedPlan(t *testing.T) {
	f := newFixture(t, &fixedOracle{decision: domain.Decision{Approved: true, Confidence: 85}})
	ctx := context.Background()

	opp := wideOpp()
	require.NoError(t, f.opps.Insert(ctx, opp))
	require.NoError(t, f.planner.Run(ctx))

	plan, err := f.plans.GetByID(ctx, PlanID(opp))
	require.NoError(t, err)
	assert.Equal(t, domain.PlanApproved, plan.Status)
	assert.Equal(t, opp.ID, plan.OpportunityID)
	assert.Equal(t, "uniswap_v3_to_sushiswap", plan.Direction)
	assert.Positive(t, plan.ExpectedProfit)
	require.NotNil(t, plan.Validation, "approved plan must carry its decision")
	assert.Equal(t, 85, plan.Validation.Confidence)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), plan.Deadline, 5*time.Second)

	got, _ := f.opps.GetByID(ctx, opp.ID)
	assert.Equal(t, domain.OpportunityPlanned, got.Status)
}

func TestRunPersistsRejectedPlan(t *testing.T) {
	f := newFixture(t, &fixedOracle{decision: domain.Decision{Approved: false, Confidence: 50, Reason: "too risky"}})
	ctx := context.Background()

	opp := wideOpp()
	require.NoError(t, f.opps.Insert(ctx, opp))
	require.NoError(t, f.planner.Run(ctx))

	plan, err := f.plans.GetByID(ctx, PlanID(opp))
	require.NoError(t, err, "rejected plans are persisted, not dropped")
	assert.Equal(t, domain.PlanRejected, plan.Status)
	require.NotNil(t, plan.Validation)
	assert.Equal(t, "too risky", plan.Validation.Reason)

	entries, _ := f.audit.List(ctx, domain.ListOpts{Limit: 10})
	require.Len(t, entries, 1)
	assert.Equal(t, "plan_rejected", entries[0].Event)

	got, _ := f.opps.GetByID(ctx, opp.ID)
	assert.Equal(t, domain.OpportunityPlanned, got.Status)
}

func TestRunDismissesUnviableOpportunity(t *testing.T) {
	f := newFixture(t, &fixedOracle{decision: domain.Decision{Approved: true, Confidence: 99}})
	ctx := context.Background()

	thin := wideOpp()
	thin.PriceA = 2500.00
	thin.PriceB = 2502.00 // ~8 bps, unviable after fees
	require.NoError(t, f.opps.Insert(ctx, thin))
	require.NoError(t, f.planner.Run(ctx))

	_, err := f.plans.GetByID(ctx, PlanID(thin))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, _ := f.opps.GetByID(ctx, thin.ID)
	assert.Equal(t, domain.OpportunityDismissed, got.Status)
}

func TestRunDedupsSameVenuePair(t *testing.T) {
	f := newFixture(t, &fixedOracle{decision: domain.Decision{Approved: true, Confidence: 85}})
	ctx := context.Background()

	first := wideOpp()
	second := wideOpp() // same token and venues, different ID
	require.NoError(t, f.opps.Insert(ctx, first))
	require.NoError(t, f.opps.Insert(ctx, second))
	require.NoError(t, f.planner.Run(ctx))

	plans, _ := f.plans.ListRecent(ctx, 10)
	assert.Len(t, plans, 1, "second opportunity on the same pair should be dismissed")

	dismissed := 0
	for _, id := range []string{first.ID, second.ID} {
		opp, _ := f.opps.GetByID(ctx, id)
		if opp.Status == domain.OpportunityDismissed {
			dismissed++
		}
	}
	assert.Equal(t, 1, dismissed)
}

// denyOnceLimiter refuses the first oracle call and allows every one after,
// simulating a rate limit window that has moved on by the next batch.
type denyOnceLimiter struct {
	calls int
}

func (l *denyOnceLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	l.calls++
	return l.calls > 1, nil
}

func TestRunRetriesRateLimitedOpportunity(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	opt := optimizer.New(optimizer.Config{
		CandidateSizesUSD: []float64{1_000, 5_000, 10_000, 25_000, 50_000},
		MaxTradeSizeUSD:   50_000,
		MinProfitBps:      20,
		BridgeFeeUSD:      8,
		BaseGasUSD:        8,
		LargeTradeGasUSD:  5,
		DefaultSlipBps:    10,
		SlippageBaseBps:   map[string]float64{"WETH": 5},
	})
	g := gate.New(gate.Config{
		Timeout:       time.Second,
		ConfidenceMin: 70,
		RatePerMinute: 1,
	}, &fixedOracle{decision: domain.Decision{Approved: true, Confidence: 85}}, &denyOnceLimiter{}, logger)

	opps := memory.NewOpportunityStore()
	plans := memory.NewPlanStore()
	p := New(Config{
		Interval:       5 * time.Second,
		Batch:          10,
		DeadlineWindow: 5 * time.Minute,
		DedupTTL:       2 * time.Minute,
	}, opt, g, opps, plans, memory.NewAuditStore(), nil, logger)

	ctx := context.Background()
	opp := wideOpp()
	require.NoError(t, opps.Insert(ctx, opp))

	// First run is rate limited: the opportunity stays detected, no plan yet.
	require.NoError(t, p.Run(ctx))
	got, _ := opps.GetByID(ctx, opp.ID)
	require.Equal(t, domain.OpportunityDetected, got.Status)
	_, err := plans.GetByID(ctx, PlanID(opp))
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The retry must not be swallowed by the dedup window the first attempt
	// opened.
	require.NoError(t, p.Run(ctx))
	got, _ = opps.GetByID(ctx, opp.ID)
	assert.Equal(t, domain.OpportunityPlanned, got.Status)
	plan, err := plans.GetByID(ctx, PlanID(opp))
	require.NoError(t, err)
	assert.Equal(t, domain.PlanApproved, plan.Status)
}

func TestPlanIDDeterministic(t *testing.T) {
	opp := wideOpp()
	assert.Equal(t, PlanID(opp), PlanID(opp))
	assert.Contains(t, PlanID(opp), "arb-weth-")
}
