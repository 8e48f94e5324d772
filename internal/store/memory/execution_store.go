package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// ExecutionStore is an in-memory implementation of domain.ExecutionStore.
type ExecutionStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Execution // keyed by execution ID
	byPlan map[string]string            // plan ID -> execution ID
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		data:   make(map[string]*domain.Execution),
		byPlan: make(map[string]string),
	}
}

// Insert appends one execution record. Returns ErrAlreadyExists if the ID or
// plan ID already has a record, matching the unique index in PostgreSQL.
func (s *ExecutionStore) Insert(_ context.Context, exec domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[exec.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if _, exists := s.byPlan[exec.PlanID]; exists {
		return domain.ErrAlreadyExists
	}

	execCopy := exec
	s.data[exec.ID] = &execCopy
	s.byPlan[exec.PlanID] = exec.ID
	return nil
}

// GetByPlanID retrieves the execution record for a plan.
func (s *ExecutionStore) GetByPlanID(_ context.Context, planID string) (domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byPlan[planID]
	if !exists {
		return domain.Execution{}, domain.ErrNotFound
	}
	return *s.data[id], nil
}

// ListRecent returns the most recent executions.
func (s *ExecutionStore) ListRecent(_ context.Context, limit int) ([]domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Execution, 0, len(s.data))
	for _, exec := range s.data {
		result = append(result, *exec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Aggregate computes execution outcome statistics since the given time.
func (s *ExecutionStore) Aggregate(_ context.Context, since time.Time) (domain.ExecutionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.ExecutionStats
	for _, exec := range s.data {
		if exec.CreatedAt.Before(since) {
			continue
		}
		stats.Count++
		stats.TotalCost += exec.ResourceCost
		switch exec.Status {
		case domain.ExecutionCompleted:
			stats.Completed++
			stats.TotalProfit += exec.ActualProfit
		case domain.ExecutionFailed:
			stats.Failed++
		}
	}
	if stats.Completed > 0 {
		stats.AvgProfit = stats.TotalProfit / float64(stats.Completed)
	}
	return stats, nil
}

// ListBefore returns executions created strictly before the cutoff.
func (s *ExecutionStore) ListBefore(_ context.Context, before time.Time) ([]domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Execution
	for _, exec := range s.data {
		if exec.CreatedAt.Before(before) {
			result = append(result, *exec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteBefore removes executions created strictly before the cutoff.
func (s *ExecutionStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, exec := range s.data {
		if exec.CreatedAt.Before(before) {
			delete(s.byPlan, exec.PlanID)
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}
