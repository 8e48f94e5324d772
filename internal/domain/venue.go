package domain

import "time"

// Quote is one observed price for a token at a venue. A venue is a liquidity
// source (chain + exchange) where a price is observed and a trade can be
// executed; venues are identified by name throughout the pipeline.
type Quote struct {
	Venue string
	Token string
	Price float64
	At    time.Time
}

// WatchTuple is one (token, venue pair) the detector samples.
type WatchTuple struct {
	Token  string
	VenueA string
	VenueB string
}
