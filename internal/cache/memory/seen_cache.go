package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// SeenCache is an in-process domain.SeenCache. It only suppresses duplicates
// within one process, which is the advisory contract anyway.
type SeenCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewSeenCache creates an empty SeenCache.
func NewSeenCache() *SeenCache {
	return &SeenCache{entries: make(map[string]time.Time)}
}

// Seen records key with the given TTL and reports whether a live entry was
// already present. Expired entries are pruned lazily on access.
func (c *SeenCache) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}

	c.entries[key] = now.Add(ttl)

	for k, expiry := range c.entries {
		if now.After(expiry) {
			delete(c.entries, k)
		}
	}
	return false, nil
}

var _ domain.SeenCache = (*SeenCache)(nil)
