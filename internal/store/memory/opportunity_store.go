// Package memory provides in-memory implementations of the domain store
// interfaces. They honor the same conditional-write semantics as the
// PostgreSQL stores and are used in tests and single-process setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OpportunityStore is an in-memory implementation of domain.OpportunityStore.
type OpportunityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Opportunity
}

// NewOpportunityStore creates a new in-memory opportunity store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{
		data: make(map[string]*domain.Opportunity),
	}
}

// Insert adds a new opportunity. Returns ErrAlreadyExists on duplicate IDs.
func (s *OpportunityStore) Insert(_ context.Context, opp domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[opp.ID]; exists {
		return domain.ErrAlreadyExists
	}

	// Store a copy to prevent external mutation
	oppCopy := opp
	s.data[opp.ID] = &oppCopy
	return nil
}

// GetByID retrieves an opportunity by ID.
func (s *OpportunityStore) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opp, exists := s.data[id]
	if !exists {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	return *opp, nil
}

// ListDetected returns up to limit opportunities still in the detected
// state, newest first.
func (s *OpportunityStore) ListDetected(_ context.Context, limit int) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Opportunity
	for _, opp := range s.data {
		if opp.Status == domain.OpportunityDetected {
			result = append(result, *opp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecent returns the most recent opportunities regardless of status.
func (s *OpportunityStore) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Opportunity, 0, len(s.data))
	for _, opp := range s.data {
		result = append(result, *opp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Transition moves an opportunity between statuses. Returns ErrClaimLost if
// the row is not in the expected prior status.
func (s *OpportunityStore) Transition(_ context.Context, id string, from, to domain.OpportunityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opp, exists := s.data[id]
	if !exists || opp.Status != from {
		return domain.ErrClaimLost
	}
	opp.Status = to
	return nil
}

// ListBefore returns opportunities detected strictly before the cutoff.
func (s *OpportunityStore) ListBefore(_ context.Context, before time.Time) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Opportunity
	for _, opp := range s.data {
		if opp.DetectedAt.Before(before) {
			result = append(result, *opp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.Before(result[j].DetectedAt)
	})
	return result, nil
}

// DeleteBefore removes opportunities detected strictly before the cutoff.
func (s *OpportunityStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, opp := range s.data {
		if opp.DetectedAt.Before(before) {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

// Aggregate computes spread statistics over opportunities detected since the
// given time.
func (s *OpportunityStore) Aggregate(_ context.Context, since time.Time) (domain.OpportunityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.OpportunityStats
	var sum float64
	for _, opp := range s.data {
		if opp.DetectedAt.Before(since) {
			continue
		}
		stats.Count++
		sum += opp.SpreadBps
		if opp.SpreadBps > stats.MaxSpreadBps {
			stats.MaxSpreadBps = opp.SpreadBps
		}
	}
	if stats.Count > 0 {
		stats.AvgSpreadBps = sum / float64(stats.Count)
	}
	return stats, nil
}
