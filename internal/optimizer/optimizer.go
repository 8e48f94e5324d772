// Package optimizer sizes trades for detected opportunities. It is pure
// arithmetic: the same opportunity and config always yield the same sizing.
package optimizer

import (
	"math"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config holds sizing parameters.
type Config struct {
	// CandidateSizesUSD are evaluated in order; ties on net profit keep the
	// earlier (smaller) candidate.
	CandidateSizesUSD []float64
	MaxTradeSizeUSD   float64
	MinProfitBps      float64
	BridgeFeeUSD      float64
	BaseGasUSD        float64
	// LargeTradeGasUSD is added on top of BaseGasUSD for sizes above
	// LargeTradeThresholdUSD.
	LargeTradeGasUSD float64
	// SlippageBaseBps maps token symbol to base slippage at the reference
	// size; unknown tokens use DefaultSlipBps.
	SlippageBaseBps map[string]float64
	DefaultSlipBps  float64
}

// LargeTradeThresholdUSD is the size above which the extra gas charge
// applies.
const LargeTradeThresholdUSD = 25_000

// slippageReferenceUSD is the size at which SlippageBaseBps applies directly;
// slippage grows with the square root of size beyond it.
const slippageReferenceUSD = 10_000

// Sizing is the result of optimizing one opportunity.
type Sizing struct {
	SizeUSD     float64
	SizeTokens  float64
	GrossProfit float64
	SlippageUSD float64
	BridgeFee   float64
	GasUSD      float64
	NetProfit   float64
	NetBps      float64
}

// Optimizer evaluates candidate sizes against an opportunity's prices.
type Optimizer struct {
	cfg Config
}

// New creates an Optimizer.
func New(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// SlippageBps returns the expected slippage for a token at a given size. Base
// slippage is calibrated at the reference size and scales with sqrt(size).
func (o *Optimizer) SlippageBps(token string, sizeUSD float64) float64 {
	base, ok := o.cfg.SlippageBaseBps[token]
	if !ok {
		base = o.cfg.DefaultSlipBps
	}
	return base * math.Sqrt(sizeUSD/slippageReferenceUSD)
}

// GasUSD returns the gas cost estimate for a trade of the given size.
func (o *Optimizer) GasUSD(sizeUSD float64) float64 {
	gas := o.cfg.BaseGasUSD
	if sizeUSD > LargeTradeThresholdUSD {
		gas += o.cfg.LargeTradeGasUSD
	}
	return gas
}

// Evaluate computes the full cost breakdown for one candidate size.
func (o *Optimizer) Evaluate(opp domain.Opportunity, sizeUSD float64) Sizing {
	buy := opp.BuyPrice()
	sell := opp.SellPrice()

	tokens := sizeUSD / buy
	gross := tokens * (sell - buy)

	slipBps := o.SlippageBps(opp.Token, sizeUSD)
	slippage := sizeUSD * slipBps / 10_000

	bridge := o.cfg.BridgeFeeUSD
	gas := o.GasUSD(sizeUSD)
	net := gross - slippage - bridge - gas

	return Sizing{
		SizeUSD:     sizeUSD,
		SizeTokens:  tokens,
		GrossProfit: gross,
		SlippageUSD: slippage,
		BridgeFee:   bridge,
		GasUSD:      gas,
		NetProfit:   net,
		NetBps:      net / sizeUSD * 10_000,
	}
}

// Best returns the candidate size with the highest net profit, or false when
// no candidate strictly exceeds the minimum profit threshold. Candidates
// above the max trade size are skipped. Deterministic: strict improvement is required to
// replace the incumbent, so equal-profit candidates resolve to the first.
func (o *Optimizer) Best(opp domain.Opportunity) (Sizing, bool) {
	if opp.BuyPrice() <= 0 {
		return Sizing{}, false
	}

	var best Sizing
	found := false
	for _, size := range o.cfg.CandidateSizesUSD {
		if size <= 0 || size > o.cfg.MaxTradeSizeUSD {
			continue
		}
		s := o.Evaluate(opp, size)
		if s.NetProfit <= 0 || s.NetBps <= o.cfg.MinProfitBps {
			continue
		}
		if !found || s.NetProfit > best.NetProfit {
			best = s
			found = true
		}
	}
	return best, found
}
