// Package service holds read-side composition logic shared by the API
// handlers.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// PipelineStats is the combined rolling-window view served by the stats
// endpoint.
type PipelineStats struct {
	Window        string                  `json:"window"`
	Since         time.Time               `json:"since"`
	Opportunities domain.OpportunityStats `json:"opportunities"`
	Executions    domain.ExecutionStats   `json:"executions"`
	SuccessRate   float64                 `json:"success_rate"`
	NetProfit     float64                 `json:"net_profit"`
}

// StatsService aggregates pipeline statistics across the stores.
type StatsService struct {
	opps  domain.OpportunityStore
	execs domain.ExecutionStore
}

// NewStatsService creates a StatsService.
func NewStatsService(opps domain.OpportunityStore, execs domain.ExecutionStore) *StatsService {
	return &StatsService{opps: opps, execs: execs}
}

// Window computes statistics over the trailing window ending now.
func (s *StatsService) Window(ctx context.Context, window time.Duration) (PipelineStats, error) {
	since := time.Now().UTC().Add(-window)

	oppStats, err := s.opps.Aggregate(ctx, since)
	if err != nil {
		return PipelineStats{}, fmt.Errorf("service: opportunity stats: %w", err)
	}

	execStats, err := s.execs.Aggregate(ctx, since)
	if err != nil {
		return PipelineStats{}, fmt.Errorf("service: execution stats: %w", err)
	}

	stats := PipelineStats{
		Window:        window.String(),
		Since:         since,
		Opportunities: oppStats,
		Executions:    execStats,
		NetProfit:     execStats.TotalProfit - execStats.TotalCost,
	}
	if execStats.Count > 0 {
		stats.SuccessRate = float64(execStats.Completed) / float64(execStats.Count)
	}
	return stats, nil
}
