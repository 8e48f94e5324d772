// Package pricing provides per-venue price sources for the detector.
package pricing

import (
	"context"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Source returns the current price of a token on a venue, in USD.
type Source interface {
	Price(ctx context.Context, venue, token string) (float64, error)
}

// QuoteFunc adapts a plain function to the Source interface.
type QuoteFunc func(ctx context.Context, venue, token string) (float64, error)

func (f QuoteFunc) Price(ctx context.Context, venue, token string) (float64, error) {
	return f(ctx, venue, token)
}

// CachingSource wraps a Source and records every successful read in a quote
// cache. Cache failures are swallowed; the price still flows to the caller.
type CachingSource struct {
	inner Source
	cache domain.QuoteCache
}

// NewCachingSource wraps inner so reads are mirrored into cache.
func NewCachingSource(inner Source, cache domain.QuoteCache) *CachingSource {
	return &CachingSource{inner: inner, cache: cache}
}

func (s *CachingSource) Price(ctx context.Context, venue, token string) (float64, error) {
	price, err := s.inner.Price(ctx, venue, token)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.SetQuote(ctx, domain.Quote{Venue: venue, Token: token, Price: price, At: time.Now().UTC()})
	}
	return price, nil
}

// Advance forwards the tick to the wrapped source when it is simulated, so
// wrapping does not freeze simulated prices.
func (s *CachingSource) Advance() {
	if adv, ok := s.inner.(interface{ Advance() }); ok {
		adv.Advance()
	}
}
