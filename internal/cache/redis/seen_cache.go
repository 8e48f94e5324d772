package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenCache suppresses duplicate emissions across detector instances using
// SET NX with a TTL. It is advisory: a Redis outage degrades to "not seen"
// at the caller's discretion, never to data loss.
type SeenCache struct {
	rdb *redis.Client
}

// NewSeenCache creates a SeenCache on top of an existing Client.
func NewSeenCache(client *Client) *SeenCache {
	return &SeenCache{rdb: client.Underlying()}
}

// Seen records the key with the given TTL and reports whether it was already
// present. The first caller for a key gets false; everyone else gets true
// until the TTL lapses.
func (c *SeenCache) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := c.rdb.SetNX(ctx, "seen:"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: seen %s: %w", key, err)
	}
	return !set, nil
}
