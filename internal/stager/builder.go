package stager

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// BuildBundle assembles the abstract transaction bundle for a plan: an
// execute step on the buy venue, a transfer step when the sell venue differs,
// then an execute step on the sell venue. The inclusion window asks for the
// next block with a small lookahead.
func BuildBundle(plan domain.Plan, maxBlockAhead int) domain.Bundle {
	steps := []domain.BundleStep{
		{
			Kind:         domain.StepExecute,
			Venue:        plan.BuyVenue,
			Token:        plan.Token,
			AmountTokens: plan.SizeTokens,
		},
	}
	if plan.SellVenue != plan.BuyVenue {
		steps = append(steps, domain.BundleStep{
			Kind:         domain.StepTransfer,
			Venue:        plan.BuyVenue,
			Token:        plan.Token,
			AmountTokens: plan.SizeTokens,
			Destination:  plan.SellVenue,
		})
	}
	steps = append(steps, domain.BundleStep{
		Kind:         domain.StepExecute,
		Venue:        plan.SellVenue,
		Token:        plan.Token,
		AmountTokens: plan.SizeTokens,
	})

	return domain.Bundle{
		ID: uuid.NewString(),
		Inclusion: domain.BundleInclusion{
			Block:    "latest",
			MaxBlock: fmt.Sprintf("latest+%d", maxBlockAhead),
		},
		Body: steps,
		Metadata: domain.BundleMetadata{
			PlanID:         plan.ID,
			ExpectedProfit: plan.ExpectedProfit,
			Timestamp:      time.Now().Unix(),
		},
	}
}
