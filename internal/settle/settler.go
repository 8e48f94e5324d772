// Package settle performs the exchange/settlement step after a bundle has
// been included.
package settle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Settler exchanges the bought tokens and reports realized figures.
type Settler interface {
	Settle(ctx context.Context, plan domain.Plan, staged domain.StageResult) (domain.Settlement, error)
}

// simResourceCostUSD is the fixed per-settlement resource charge used by the
// simulated settler.
const simResourceCostUSD = 15.0

// slippageHaircut is the fraction of expected profit realized in simulation.
const slippageHaircut = 0.95

// SimSettler is a deterministic settler for development and tests: realized
// profit is the expected profit with a fixed haircut, and resource cost is
// constant.
type SimSettler struct{}

// NewSimSettler creates a SimSettler.
func NewSimSettler() *SimSettler {
	return &SimSettler{}
}

// Settle returns the simulated settlement for an included bundle.
func (s *SimSettler) Settle(_ context.Context, plan domain.Plan, staged domain.StageResult) (domain.Settlement, error) {
	if staged.Status != domain.BundleIncluded {
		return domain.Settlement{}, fmt.Errorf("settle: bundle %s not included", staged.BundleID)
	}
	return domain.Settlement{
		Ref:          "sim-" + uuid.NewString(),
		ActualProfit: plan.ExpectedProfit * slippageHaircut,
		ResourceCost: simResourceCostUSD,
	}, nil
}
