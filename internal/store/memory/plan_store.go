package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// PlanStore is an in-memory implementation of domain.PlanStore. Claim,
// Finish, and ExpireDue perform their status checks under the write lock, so
// concurrent callers observe the same win-exactly-once behavior as the
// PostgreSQL conditional updates.
type PlanStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Plan
}

// NewPlanStore creates a new in-memory plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{
		data: make(map[string]*domain.Plan),
	}
}

// Create adds a new plan. Returns ErrAlreadyExists on duplicate IDs.
func (s *PlanStore) Create(_ context.Context, p domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return domain.ErrAlreadyExists
	}

	planCopy := clonePlan(p)
	s.data[p.ID] = &planCopy
	return nil
}

// GetByID retrieves a plan by ID.
func (s *PlanStore) GetByID(_ context.Context, id string) (domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return domain.Plan{}, domain.ErrNotFound
	}
	return clonePlan(*p), nil
}

// ListExecutable returns approved plans with a live deadline, most profitable
// first.
func (s *PlanStore) ListExecutable(_ context.Context, now time.Time, limit int) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Plan
	for _, p := range s.data {
		if p.Status == domain.PlanApproved && p.Deadline.After(now) {
			result = append(result, clonePlan(*p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpectedProfit > result[j].ExpectedProfit
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListActive returns plans currently approved or executing.
func (s *PlanStore) ListActive(_ context.Context, opts domain.ListOpts) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Plan
	for _, p := range s.data {
		if p.Status == domain.PlanApproved || p.Status == domain.PlanExecuting {
			result = append(result, clonePlan(*p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	result = paginate(result, opts)
	return result, nil
}

// ListRecent returns the most recently created plans regardless of status.
func (s *PlanStore) ListRecent(_ context.Context, limit int) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Plan, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, clonePlan(*p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Claim atomically moves a plan from approved to executing, re-checking the
// deadline under the lock.
func (s *PlanStore) Claim(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[id]
	if !exists || p.Status != domain.PlanApproved || !p.Deadline.After(now) {
		return domain.ErrClaimLost
	}
	p.Status = domain.PlanExecuting
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Finish moves a claimed plan from executing to a terminal outcome.
func (s *PlanStore) Finish(_ context.Context, id string, to domain.PlanStatus) error {
	if to != domain.PlanExecuted && to != domain.PlanFailed {
		return fmt.Errorf("memory: finish plan %s: invalid target status %q", id, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[id]
	if !exists || p.Status != domain.PlanExecuting {
		return domain.ErrClaimLost
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ExpireDue sweeps approved plans whose deadline has passed.
func (s *PlanStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.data {
		if p.Status == domain.PlanApproved && !p.Deadline.After(now) {
			p.Status = domain.PlanExpired
			p.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

// ListBefore returns plans created strictly before the cutoff.
func (s *PlanStore) ListBefore(_ context.Context, before time.Time) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Plan
	for _, p := range s.data {
		if p.CreatedAt.Before(before) {
			result = append(result, clonePlan(*p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteBefore removes plans created strictly before the cutoff.
func (s *PlanStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.data {
		if p.CreatedAt.Before(before) {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

// clonePlan deep-copies a plan including its validation decision so callers
// cannot mutate stored state.
func clonePlan(p domain.Plan) domain.Plan {
	out := p
	if p.Validation != nil {
		v := *p.Validation
		out.Validation = &v
	}
	return out
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}
