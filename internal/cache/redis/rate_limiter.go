package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/sliding_window.lua
var slidingWindowScript string

// RateLimiter enforces a sliding-window rate limit shared across instances.
// The window bookkeeping runs inside a Lua script so the check-and-record is
// atomic even with multiple processes hitting the same key.
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script
}

// NewRateLimiter creates a RateLimiter on top of an existing Client.
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{
		rdb:           client.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowScript),
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow reports whether one more call under key fits within limit calls per
// window. An allowed call is recorded as part of the same check.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()
	windowMicro := window.Microseconds()

	result, err := rl.slidingWindow.Run(ctx, rl.rdb,
		[]string{rateLimitKey(key)},
		now, windowMicro, limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(result) != 2 {
		return false, fmt.Errorf("redis: rate limit %s: unexpected script result length %d", key, len(result))
	}

	return result[0] == 1, nil
}
