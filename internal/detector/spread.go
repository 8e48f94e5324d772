package detector

import "math"

// SpreadBps returns the absolute price spread between two venues in basis
// points, relative to the cheaper side. Returns 0 when either price is not
// positive, so bad feed reads never surface as opportunities.
func SpreadBps(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	low := math.Min(priceA, priceB)
	return math.Abs(priceA-priceB) / low * 10_000
}

// EstimateProfit converts a spread into a rough pre-sizing USD estimate using
// a notional reference size. The optimizer computes the real figure later;
// this value only ranks opportunities.
func EstimateProfit(spreadBps, referenceUSD float64) float64 {
	return spreadBps / 10_000 * referenceUSD
}
