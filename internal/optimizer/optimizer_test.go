package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func defaultConfig() Config {
	return Config{
		CandidateSizesUSD: []float64{1_000, 5_000, 10_000, 25_000, 50_000},
		MaxTradeSizeUSD:   50_000,
		MinProfitBps:      20,
		BridgeFeeUSD:      8,
		BaseGasUSD:        8,
		LargeTradeGasUSD:  5,
		DefaultSlipBps:    10,
		SlippageBaseBps: map[string]float64{
			"WETH": 5,
			"USDC": 2,
			"USDT": 3,
			"WBTC": 8,
		},
	}
}

func wethOpp() domain.Opportunity {
	return domain.Opportunity{
		ID:        "o1",
		Token:     "WETH",
		VenueA:    "uniswap_v3",
		VenueB:    "sushiswap",
		PriceA:    2485.50,
		PriceB:    2510.25,
		SpreadBps: 99.58,
	}
}

func TestSlippageSqrtScaling(t *testing.T) {
	o := New(defaultConfig())

	// base slippage applies exactly at the 10k reference size
	assert.InDelta(t, 5.0, o.SlippageBps("WETH", 10_000), 1e-9)
	// quadrupling the size doubles the slippage
	assert.InDelta(t, 10.0, o.SlippageBps("WETH", 40_000), 1e-9)
	// unknown tokens fall back to the default base
	assert.InDelta(t, 10.0, o.SlippageBps("PEPE", 10_000), 1e-9)
}

func TestGasStepsAboveThreshold(t *testing.T) {
	o := New(defaultConfig())

	assert.Equal(t, 8.0, o.GasUSD(25_000))
	assert.Equal(t, 13.0, o.GasUSD(25_001))
	assert.Equal(t, 13.0, o.GasUSD(50_000))
}

func TestEvaluateBreakdown(t *testing.T) {
	o := New(defaultConfig())
	s := o.Evaluate(wethOpp(), 10_000)

	tokens := 10_000 / 2485.50
	gross := tokens * (2510.25 - 2485.50)
	slippage := 10_000 * 5.0 / 10_000

	assert.InDelta(t, tokens, s.SizeTokens, 1e-9)
	assert.InDelta(t, gross, s.GrossProfit, 1e-9)
	assert.InDelta(t, slippage, s.SlippageUSD, 1e-9)
	assert.Equal(t, 8.0, s.BridgeFee)
	assert.Equal(t, 8.0, s.GasUSD)
	assert.InDelta(t, gross-slippage-16, s.NetProfit, 1e-9)
}

func TestBestPicksHighestNetProfit(t *testing.T) {
	o := New(defaultConfig())

	s, ok := o.Best(wethOpp())
	require.True(t, ok)

	// every other candidate must not beat the winner
	for _, size := range defaultConfig().CandidateSizesUSD {
		if size == s.SizeUSD {
			continue
		}
		other := o.Evaluate(wethOpp(), size)
		assert.LessOrEqual(t, other.NetProfit, s.NetProfit,
			"size %v should not beat chosen size %v", size, s.SizeUSD)
	}
	assert.Greater(t, s.NetBps, 20.0)
}

func TestBestRejectsExactMinProfit(t *testing.T) {
	cfg := Config{
		CandidateSizesUSD: []float64{10_000},
		MaxTradeSizeUSD:   50_000,
		MinProfitBps:      20,
		BridgeFeeUSD:      8,
		BaseGasUSD:        8,
	}
	o := New(cfg)

	// 100 tokens at a 0.36 spread gross exactly 36; net 20 after fees is
	// exactly the floor and must not qualify.
	atFloor := domain.Opportunity{
		Token:  "WETH",
		VenueA: "uniswap_v3",
		VenueB: "sushiswap",
		PriceA: 100.00,
		PriceB: 100.36,
	}
	_, ok := o.Best(atFloor)
	assert.False(t, ok, "net bps equal to the floor must be rejected")

	above := atFloor
	above.PriceB = 100.37
	s, ok := o.Best(above)
	require.True(t, ok)
	assert.Greater(t, s.NetBps, cfg.MinProfitBps)
}

func TestBestDeterministic(t *testing.T) {
	o := New(defaultConfig())
	first, ok := o.Best(wethOpp())
	require.True(t, ok)

	for i := 0; i < 50; i++ {
		again, ok := o.Best(wethOpp())
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestBestNoViableSize(t *testing.T) {
	o := New(defaultConfig())

	// ~8 bps spread cannot clear fees plus the 20 bps floor at any size
	thin := domain.Opportunity{
		Token:  "WETH",
		VenueA: "uniswap_v3",
		VenueB: "sushiswap",
		PriceA: 2500.00,
		PriceB: 2502.00,
	}
	_, ok := o.Best(thin)
	assert.False(t, ok)
}

func TestBestRespectsMaxTradeSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxTradeSizeUSD = 10_000
	o := New(cfg)

	s, ok := o.Best(wethOpp())
	require.True(t, ok)
	assert.LessOrEqual(t, s.SizeUSD, 10_000.0)
}

func TestBestZeroPrice(t *testing.T) {
	o := New(defaultConfig())
	_, ok := o.Best(domain.Opportunity{Token: "WETH"})
	assert.False(t, ok)

	// NaN guard: net bps should always be finite for valid input
	s, _ := o.Best(wethOpp())
	assert.False(t, math.IsNaN(s.NetBps))
}
