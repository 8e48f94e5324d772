package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/service"
	"github.com/alanyoungcy/crossarb/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedOpportunity(t *testing.T, opps *memory.OpportunityStore, id string) {
	t.Helper()
	require.NoError(t, opps.Insert(context.Background(), domain.Opportunity{
		ID:             id,
		Token:          "WETH",
		VenueA:         "uniswap_v3",
		VenueB:         "sushiswap",
		PriceA:         2485.50,
		PriceB:         2510.25,
		SpreadBps:      99.58,
		ProfitEstimate: 99.58,
		Status:         domain.OpportunityDetected,
		DetectedAt:     time.Now().UTC(),
	}))
}

func TestOpportunityHandlerListAndGet(t *testing.T) {
	opps := memory.NewOpportunityStore()
	seedOpportunity(t, opps, "opp-1")
	h := NewOpportunityHandler(opps, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/opportunities", h.ListRecent)
	mux.HandleFunc("GET /api/opportunities/{id}", h.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list listOpportunitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Opportunities, 1)
	assert.Equal(t, "opp-1", list.Opportunities[0].ID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/opp-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanHandlerReturnsStoredDecision(t *testing.T) {
	plans := memory.NewPlanStore()
	now := time.Now().UTC()
	require.NoError(t, plans.Create(context.Background(), domain.Plan{
		ID:             "arb-weth-deadbeef",
		OpportunityID:  "opp-1",
		Token:          "WETH",
		Direction:      "uniswap_v3_to_sushiswap",
		SizeUSD:        10_000,
		ExpectedProfit: 80,
		Deadline:       now.Add(5 * time.Minute),
		Status:         domain.PlanApproved,
		Validation:     &domain.Decision{Approved: true, Confidence: 85, Reason: "ok"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}))

	h := NewPlanHandler(plans, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/plans/{id}", h.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans/arb-weth-deadbeef", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var plan domain.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.NotNil(t, plan.Validation)
	assert.Equal(t, 85, plan.Validation.Confidence)
}

func TestExecutionHandlerByPlan(t *testing.T) {
	execs := memory.NewExecutionStore()
	require.NoError(t, execs.Insert(context.Background(), domain.Execution{
		ID:             "exec-1",
		PlanID:         "plan-1",
		Status:         domain.ExecutionCompleted,
		ExpectedProfit: 100,
		ActualProfit:   95,
		CreatedAt:      time.Now().UTC(),
	}))

	h := NewExecutionHandler(execs, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/plans/{id}/execution", h.GetByPlan)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans/plan-1/execution", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans/unknown/execution", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsHandlerWindows(t *testing.T) {
	opps := memory.NewOpportunityStore()
	execs := memory.NewExecutionStore()
	seedOpportunity(t, opps, "opp-1")
	require.NoError(t, execs.Insert(context.Background(), domain.Execution{
		ID:             "exec-1",
		PlanID:         "plan-1",
		Status:         domain.ExecutionCompleted,
		ExpectedProfit: 100,
		ActualProfit:   95,
		ResourceCost:   15,
		CreatedAt:      time.Now().UTC(),
	}))

	h := NewStatsHandler(service.NewStatsService(opps, execs), discardLogger())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/stats?window=24h", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.PipelineStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Opportunities.Count)
	assert.Equal(t, int64(1), stats.Executions.Completed)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 80.0, stats.NetProfit, 1e-9)

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/stats?window=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteHandlerDisabled(t *testing.T) {
	h := NewQuoteHandler(nil, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/quotes/{venue}/{token}", h.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quotes/uniswap_v3/WETH", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
