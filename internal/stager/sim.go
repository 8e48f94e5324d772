package stager

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// SimSubmitter is an in-process Submitter for running the pipeline without a
// staging service. Bundles are accepted immediately and report inclusion on
// the second status poll, exercising the same poll loop the real service
// does.
type SimSubmitter struct {
	mu    sync.Mutex
	polls map[string]int
	block int64
}

// NewSimSubmitter creates a SimSubmitter.
func NewSimSubmitter() *SimSubmitter {
	return &SimSubmitter{
		polls: make(map[string]int),
		block: 19_000_000,
	}
}

// Submit accepts the bundle and echoes its ID.
func (s *SimSubmitter) Submit(_ context.Context, bundle domain.Bundle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[bundle.ID] = 0
	return bundle.ID, nil
}

// Status reports pending on the first poll and included afterwards.
func (s *SimSubmitter) Status(_ context.Context, bundleID string) (domain.BundleStatus, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls[bundleID]++
	if s.polls[bundleID] < 2 {
		return domain.BundlePending, "", nil
	}

	s.block++
	delete(s.polls, bundleID)
	return domain.BundleIncluded, fmt.Sprintf("%d", s.block), nil
}
