package stager

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/store/memory"
)

type scriptedSubmitter struct {
	submitErr error
	// statuses are returned in order; the last one repeats.
	statuses []domain.BundleStatus
	block    string
	polls    int
}

func (s *scriptedSubmitter) Submit(_ context.Context, bundle domain.Bundle) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return bundle.ID, nil
}

func (s *scriptedSubmitter) Status(context.Context, string) (domain.BundleStatus, string, error) {
	idx := s.polls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.polls++
	status := s.statuses[idx]
	if status == domain.BundleIncluded {
		return status, s.block, nil
	}
	return status, "", nil
}

func testPlan() domain.Plan {
	return domain.Plan{
		ID:             "arb-weth-abc",
		Token:          "WETH",
		BuyVenue:       "uniswap_v3",
		SellVenue:      "sushiswap",
		SizeTokens:     4.02,
		ExpectedProfit: 75,
		Status:         domain.PlanExecuting,
	}
}

func newStager(client Submitter, audit domain.AuditStore) *Stager {
	s := New(Config{
		PollInterval:  12 * time.Second,
		MaxAttempts:   10,
		MaxBlockAhead: 2,
	}, client, audit, slog.New(slog.DiscardHandler))
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestBuildBundleCrossVenue(t *testing.T) {
	b := BuildBundle(testPlan(), 2)

	require.Len(t, b.Body, 3)
	assert.Equal(t, domain.StepExecute, b.Body[0].Kind)
	assert.Equal(t, "uniswap_v3", b.Body[0].Venue)
	assert.Equal(t, domain.StepTransfer, b.Body[1].Kind)
	assert.Equal(t, "sushiswap", b.Body[1].Destination)
	assert.Equal(t, domain.StepExecute, b.Body[2].Kind)
	assert.Equal(t, "sushiswap", b.Body[2].Venue)

	assert.Equal(t, "latest", b.Inclusion.Block)
	assert.Equal(t, "latest+2", b.Inclusion.MaxBlock)
	assert.Equal(t, "arb-weth-abc", b.Metadata.PlanID)
}

func TestBuildBundleSameVenueSkipsTransfer(t *testing.T) {
	p := testPlan()
	p.SellVenue = p.BuyVenue
	b := BuildBundle(p, 2)

	require.Len(t, b.Body, 2)
	for _, step := range b.Body {
		assert.Equal(t, domain.StepExecute, step.Kind)
	}
}

func TestStageIncluded(t *testing.T) {
	audit := memory.NewAuditStore()
	client := &scriptedSubmitter{
		statuses: []domain.BundleStatus{domain.BundlePending, domain.BundlePending, domain.BundleIncluded},
		block:    "19000123",
	}
	s := newStager(client, audit)

	result, err := s.Stage(context.Background(), testPlan())
	require.NoError(t, err)
	assert.Equal(t, domain.BundleIncluded, result.Status)
	assert.Equal(t, "19000123", result.InclusionBlock)
	assert.Equal(t, 3, result.Attempts)

	entries, _ := audit.List(context.Background(), domain.ListOpts{Limit: 10})
	require.Len(t, entries, 1)
	assert.Equal(t, "bundle_included", entries[0].Event)
	assert.Equal(t, "arb-weth-abc", entries[0].Detail["plan_id"])
}

func TestStageExhaustionFails(t *testing.T) {
	audit := memory.NewAuditStore()
	client := &scriptedSubmitter{statuses: []domain.BundleStatus{domain.BundlePending}}
	s := newStager(client, audit)

	result, err := s.Stage(context.Background(), testPlan())
	require.NoError(t, err)
	assert.Equal(t, domain.BundleFailed, result.Status)
	assert.Equal(t, 10, result.Attempts)
	assert.Equal(t, 10, client.polls, "polling must stop at max attempts")

	entries, _ := audit.List(context.Background(), domain.ListOpts{Limit: 10})
	require.Len(t, entries, 1)
	assert.Equal(t, "bundle_failed", entries[0].Event)
	assert.Equal(t, "inclusion attempts exhausted", entries[0].Detail["reason"])
}

func TestStageServiceFailure(t *testing.T) {
	audit := memory.NewAuditStore()
	client := &scriptedSubmitter{
		statuses: []domain.BundleStatus{domain.BundlePending, domain.BundleFailed},
	}
	s := newStager(client, audit)

	result, err := s.Stage(context.Background(), testPlan())
	require.NoError(t, err)
	assert.Equal(t, domain.BundleFailed, result.Status)
	assert.Equal(t, 2, result.Attempts)
}

type failingAudit struct{}

func (failingAudit) Log(context.Context, string, map[string]any) error {
	return errors.New("audit store down")
}

func (failingAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, errors.New("audit store down")
}

func TestStageAuditFailureDoesNotChangeOutcome(t *testing.T) {
	client := &scriptedSubmitter{
		statuses: []domain.BundleStatus{domain.BundleIncluded},
		block:    "19000123",
	}
	s := newStager(client, failingAudit{})

	result, err := s.Stage(context.Background(), testPlan())
	require.NoError(t, err)
	assert.Equal(t, domain.BundleIncluded, result.Status)
	assert.Equal(t, "19000123", result.InclusionBlock)
}

func TestStageSubmitError(t *testing.T) {
	audit := memory.NewAuditStore()
	client := &scriptedSubmitter{submitErr: errors.New("connection refused")}
	s := newStager(client, audit)

	_, err := s.Stage(context.Background(), testPlan())
	assert.Error(t, err)
}

func TestStageCancelledContext(t *testing.T) {
	audit := memory.NewAuditStore()
	client := &scriptedSubmitter{statuses: []domain.BundleStatus{domain.BundlePending}}
	s := New(Config{
		PollInterval:  time.Hour,
		MaxAttempts:   10,
		MaxBlockAhead: 2,
	}, client, audit, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Stage(ctx, testPlan())
	assert.ErrorIs(t, err, context.Canceled)
}
