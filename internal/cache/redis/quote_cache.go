package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

const quoteTTL = 5 * time.Minute

// QuoteCache stores the latest observed quote per (venue, token) in Redis
// hashes. Entries expire after quoteTTL so stale prices age out on their own.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache on top of an existing Client.
func NewQuoteCache(client *Client) *QuoteCache {
	return &QuoteCache{rdb: client.Underlying()}
}

func quoteKey(venue, token string) string {
	return fmt.Sprintf("quote:%s:%s", venue, token)
}

// SetQuote writes the quote for its (venue, token) pair, replacing any
// previous value.
func (c *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Venue, q.Token)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"price": strconv.FormatFloat(q.Price, 'f', -1, 64),
		"ts":    q.At.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, quoteTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s/%s: %w", q.Venue, q.Token, err)
	}
	return nil
}

// GetQuote returns the cached quote for (venue, token), or ErrNotFound if no
// fresh entry exists.
func (c *QuoteCache) GetQuote(ctx context.Context, venue, token string) (domain.Quote, error) {
	fields, err := c.rdb.HGetAll(ctx, quoteKey(venue, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote %s/%s: %w", venue, token, err)
	}
	if len(fields) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(fields["price"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse cached price for %s/%s: %w", venue, token, err)
	}

	at, err := time.Parse(time.RFC3339Nano, fields["ts"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse cached timestamp for %s/%s: %w", venue, token, err)
	}

	return domain.Quote{
		Venue: venue,
		Token: token,
		Price: price,
		At:    at,
	}, nil
}
