package pricing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// simBasePrices are the reference prices the simulated source oscillates
// around.
var simBasePrices = map[string]float64{
	"WETH": 2500,
	"WBTC": 65000,
	"USDC": 1,
	"USDT": 1,
}

// SimSource produces deterministic synthetic prices with small per-venue
// offsets, so the detector periodically sees crossable spreads without any
// network access. Used in development and tests.
type SimSource struct {
	tick atomic.Int64
}

// NewSimSource creates a simulated price source.
func NewSimSource() *SimSource {
	return &SimSource{}
}

// Advance moves the simulation forward one step. The detector calls this once
// per scan so repeated reads within a scan are stable.
func (s *SimSource) Advance() {
	s.tick.Add(1)
}

// Price returns a deterministic price for (venue, token) at the current tick.
func (s *SimSource) Price(_ context.Context, venue, token string) (float64, error) {
	base, ok := simBasePrices[token]
	if !ok {
		return 0, fmt.Errorf("pricing: sim has no base price for token %q", token)
	}

	tick := s.tick.Load()

	// Stable per-(venue,token) phase offset so venues disagree.
	h := fnv.New32a()
	h.Write([]byte(venue))
	h.Write([]byte{0})
	h.Write([]byte(token))
	phase := float64(h.Sum32()%628) / 100 // [0, 2pi)

	// Slow drift plus a venue-specific wobble of up to ~60 bps.
	drift := math.Sin(float64(tick)/20) * 0.002
	wobble := math.Sin(float64(tick)/7+phase) * 0.006

	return base * (1 + drift + wobble), nil
}
