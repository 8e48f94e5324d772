// Package planner turns detected opportunities into validated, sized plans.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/gate"
	"github.com/alanyoungcy/crossarb/internal/optimizer"
)

// Config holds planning loop parameters.
type Config struct {
	Interval       time.Duration
	Batch          int
	DeadlineWindow time.Duration
	DedupTTL       time.Duration
}

// Planner drains detected opportunities: each one is sized, validated, and
// persisted as a plan (approved or rejected), then handed off by a
// conditional status write on the opportunity. Multiple planner instances
// race on that write; the losers drop the opportunity silently.
type Planner struct {
	cfg    Config
	opt    *optimizer.Optimizer
	gate   *gate.Gate
	opps   domain.OpportunityStore
	plans  domain.PlanStore
	audit  domain.AuditStore
	bus    domain.EventBus
	dedup  *Dedup
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Planner. bus may be nil.
func New(cfg Config, opt *optimizer.Optimizer, g *gate.Gate, opps domain.OpportunityStore, plans domain.PlanStore, audit domain.AuditStore, bus domain.EventBus, logger *slog.Logger) *Planner {
	return &Planner{
		cfg:    cfg,
		opt:    opt,
		gate:   g,
		opps:   opps,
		plans:  plans,
		audit:  audit,
		bus:    bus,
		dedup:  NewDedup(cfg.DedupTTL),
		logger: logger.With(slog.String("component", "planner")),
		now:    time.Now,
	}
}

// PlanID derives the deterministic plan ID for an opportunity, so retrying a
// half-finished handoff cannot create a second plan.
func PlanID(opp domain.Opportunity) string {
	frag := opp.ID
	if len(frag) > 8 {
		frag = frag[:8]
	}
	return fmt.Sprintf("arb-%s-%s", strings.ToLower(opp.Token), frag)
}

// Run processes one batch of detected opportunities.
func (p *Planner) Run(ctx context.Context) error {
	opps, err := p.opps.ListDetected(ctx, p.cfg.Batch)
	if err != nil {
		return fmt.Errorf("planner: list detected: %w", err)
	}

	for _, opp := range opps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.plan(ctx, opp); err != nil {
			p.logger.ErrorContext(ctx, "planning failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	p.dedup.Cleanup()
	return nil
}

func (p *Planner) plan(ctx context.Context, opp domain.Opportunity) error {
	pairKey := fmt.Sprintf("%s:%s:%s", opp.Token, opp.BuyVenue(), opp.SellVenue())
	if p.dedup.IsDuplicate(pairKey) {
		return p.dismiss(ctx, opp, "duplicate venue pair within dedup window")
	}

	sizing, viable := p.opt.Best(opp)
	if !viable {
		return p.dismiss(ctx, opp, "no viable trade size")
	}

	now := p.now().UTC()
	draft := domain.Plan{
		ID:             PlanID(opp),
		OpportunityID:  opp.ID,
		Token:          opp.Token,
		Direction:      fmt.Sprintf("%s_to_%s", opp.BuyVenue(), opp.SellVenue()),
		SizeUSD:        sizing.SizeUSD,
		SizeTokens:     sizing.SizeTokens,
		ExpectedProfit: sizing.NetProfit,
		ProfitBps:      sizing.NetBps,
		BuyVenue:       opp.BuyVenue(),
		SellVenue:      opp.SellVenue(),
		BuyPrice:       opp.BuyPrice(),
		SellPrice:      opp.SellPrice(),
		Deadline:       now.Add(p.cfg.DeadlineWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	decision, approved, err := p.gate.Validate(ctx, domain.DecisionRequest{
		Token:             draft.Token,
		SizeUSD:           draft.SizeUSD,
		SizeTokens:        draft.SizeTokens,
		Direction:         draft.Direction,
		BuyPrice:          draft.BuyPrice,
		SellPrice:         draft.SellPrice,
		ExpectedProfit:    draft.ExpectedProfit,
		ProfitBps:         draft.ProfitBps,
		TimeBudgetSeconds: draft.TimeBudget(now),
	})
	if errors.Is(err, domain.ErrRateLimited) {
		// Leave the opportunity detected for a later batch, and un-record the
		// pair key so the retry is not dismissed as its own duplicate.
		p.dedup.Forget(pairKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("planner: validate: %w", err)
	}

	draft.Validation = &decision
	if approved {
		draft.Status = domain.PlanApproved
	} else {
		draft.Status = domain.PlanRejected
		if err := p.audit.Log(ctx, "plan_rejected", map[string]any{
			"plan_id":    draft.ID,
			"token":      draft.Token,
			"confidence": decision.Confidence,
			"reason":     decision.Reason,
		}); err != nil {
			p.logger.WarnContext(ctx, "audit write failed",
				slog.String("event", "plan_rejected"),
				slog.String("plan_id", draft.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	// The plan row (with its stored decision) lands before the opportunity
	// handoff, so an approved plan without a decision can never be observed.
	if err := p.plans.Create(ctx, draft); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// a previous run got this far; finish the handoff below
			p.logger.WarnContext(ctx, "plan already exists, completing handoff",
				slog.String("plan_id", draft.ID))
		} else {
			return fmt.Errorf("planner: create plan: %w", err)
		}
	}

	if err := p.opps.Transition(ctx, opp.ID, domain.OpportunityDetected, domain.OpportunityPlanned); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			return nil
		}
		return fmt.Errorf("planner: transition opportunity: %w", err)
	}

	p.logger.InfoContext(ctx, "plan created",
		slog.String("plan_id", draft.ID),
		slog.String("status", string(draft.Status)),
		slog.Float64("size_usd", draft.SizeUSD),
		slog.Float64("expected_profit", draft.ExpectedProfit),
	)
	p.publish(ctx, draft)
	return nil
}

func (p *Planner) dismiss(ctx context.Context, opp domain.Opportunity, reason string) error {
	if err := p.opps.Transition(ctx, opp.ID, domain.OpportunityDetected, domain.OpportunityDismissed); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			return nil
		}
		return fmt.Errorf("planner: dismiss opportunity: %w", err)
	}
	p.logger.DebugContext(ctx, "opportunity dismissed",
		slog.String("opportunity_id", opp.ID),
		slog.String("reason", reason),
	)
	return nil
}

func (p *Planner) publish(ctx context.Context, plan domain.Plan) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":            "plan_created",
		"id":              plan.ID,
		"status":          plan.Status,
		"expected_profit": plan.ExpectedProfit,
	})
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, "events", payload); err != nil {
		p.logger.WarnContext(ctx, "event publish failed", slog.String("error", err.Error()))
	}
}

// RunLoop plans on the configured interval until the context is cancelled.
func (p *Planner) RunLoop(ctx context.Context) error {
	if err := p.Run(ctx); err != nil {
		p.logger.Error("planning run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("planner loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				p.logger.Error("planning run failed", slog.String("error", err.Error()))
			}
		}
	}
}
