package domain

import "time"

// OpportunityStatus tracks an opportunity's progress through the pipeline.
type OpportunityStatus string

const (
	// OpportunityDetected is the initial state written by the detector.
	OpportunityDetected OpportunityStatus = "detected"
	// OpportunityPlanned means the planner produced a plan from it.
	OpportunityPlanned OpportunityStatus = "planned"
	// OpportunityDismissed means no viable plan could be built from it.
	OpportunityDismissed OpportunityStatus = "dismissed"
)

// Opportunity is a detected cross-venue price discrepancy for one token,
// before sizing. The price fields are immutable once created; only Status
// changes as the planner consumes the row.
type Opportunity struct {
	ID             string
	Token          string
	VenueA         string
	VenueB         string
	PriceA         float64
	PriceB         float64
	SpreadBps      float64
	ProfitEstimate float64
	Status         OpportunityStatus
	DetectedAt     time.Time
}

// BuyVenue returns the venue with the lower observed price.
func (o Opportunity) BuyVenue() string {
	if o.PriceA <= o.PriceB {
		return o.VenueA
	}
	return o.VenueB
}

// SellVenue returns the venue with the higher observed price.
func (o Opportunity) SellVenue() string {
	if o.PriceA <= o.PriceB {
		return o.VenueB
	}
	return o.VenueA
}

// BuyPrice returns the lower of the two observed prices.
func (o Opportunity) BuyPrice() float64 {
	if o.PriceA <= o.PriceB {
		return o.PriceA
	}
	return o.PriceB
}

// SellPrice returns the higher of the two observed prices.
func (o Opportunity) SellPrice() float64 {
	if o.PriceA <= o.PriceB {
		return o.PriceB
	}
	return o.PriceA
}
