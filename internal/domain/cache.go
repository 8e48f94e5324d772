package domain

import (
	"context"
	"time"
)

// QuoteCache stores the latest observed quote per (venue, token). It is a
// freshness optimization for the read API; pipeline correctness never
// depends on it.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, venue, token string) (Quote, error)
}

// SeenCache suppresses re-emission of recently seen keys across detector
// instances. It is advisory only: both false positives and false negatives
// must be tolerated, since the store remains the source of truth.
type SeenCache interface {
	// Seen records the key with the given TTL and reports whether it was
	// already present.
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RateLimiter bounds the rate of calls to an external collaborator, shared
// across instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus publishes pipeline events to interested subscribers (the
// WebSocket hub). Delivery is best-effort.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
