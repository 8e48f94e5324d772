// Package coordinator claims approved plans and drives them through staging
// and settlement to a terminal outcome.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/notify"
	"github.com/alanyoungcy/crossarb/internal/settle"
	"github.com/alanyoungcy/crossarb/internal/stager"
)

// Config holds coordination parameters.
type Config struct {
	Interval time.Duration
	// Batch is the number of top-profit plans considered per tick.
	Batch         int
	MaxConcurrent int
}

// Coordinator runs the execution side of the pipeline. Each tick it sweeps
// expired plans, reads the most profitable approved plans, and tries to claim
// each one. The claim is the only synchronization between coordinator
// instances; a lost claim is a silent skip. Every claimed plan ends the tick
// with a terminal status and exactly one execution row.
type Coordinator struct {
	cfg      Config
	plans    domain.PlanStore
	execs    domain.ExecutionStore
	stager   *stager.Stager
	settler  settle.Settler
	notifier *notify.Notifier
	bus      domain.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Coordinator. notifier and bus may be nil.
func New(cfg Config, plans domain.PlanStore, execs domain.ExecutionStore, st *stager.Stager, settler settle.Settler, notifier *notify.Notifier, bus domain.EventBus, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		plans:    plans,
		execs:    execs,
		stager:   st,
		settler:  settler,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "coordinator")),
		now:      time.Now,
	}
}

// Tick runs one coordination cycle.
func (c *Coordinator) Tick(ctx context.Context) error {
	now := c.now().UTC()

	swept, err := c.plans.ExpireDue(ctx, now)
	if err != nil {
		return fmt.Errorf("coordinator: expire due: %w", err)
	}
	if swept > 0 {
		c.logger.InfoContext(ctx, "expired stale plans", slog.Int64("count", swept))
	}

	candidates, err := c.plans.ListExecutable(ctx, now, c.cfg.Batch)
	if err != nil {
		return fmt.Errorf("coordinator: list executable: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)
	for _, plan := range candidates {
		plan := plan
		g.Go(func() error {
			c.execute(ctx, plan)
			return nil
		})
	}
	return g.Wait()
}

// execute claims and runs a single plan. All failure paths after a
// successful claim converge on finish(), so a claimed plan cannot remain
// executing.
func (c *Coordinator) execute(ctx context.Context, plan domain.Plan) {
	err := c.plans.Claim(ctx, plan.ID, c.now().UTC())
	if errors.Is(err, domain.ErrClaimLost) {
		return
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "claim failed",
			slog.String("plan_id", plan.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.InfoContext(ctx, "plan claimed",
		slog.String("plan_id", plan.ID),
		slog.Float64("expected_profit", plan.ExpectedProfit),
	)
	started := c.now()

	staged, err := c.stager.Stage(ctx, plan)
	if err != nil {
		c.finish(ctx, plan, domain.Execution{
			Status:        domain.ExecutionFailed,
			FailureReason: "staging error: " + err.Error(),
		}, started)
		return
	}
	if staged.Status != domain.BundleIncluded {
		c.finish(ctx, plan, domain.Execution{
			BundleRef:     staged.BundleID,
			Status:        domain.ExecutionFailed,
			FailureReason: "bundle not included",
		}, started)
		return
	}

	settlement, err := c.settler.Settle(ctx, plan, staged)
	if err != nil {
		c.finish(ctx, plan, domain.Execution{
			BundleRef:     staged.BundleID,
			Status:        domain.ExecutionFailed,
			FailureReason: "settlement error: " + err.Error(),
		}, started)
		return
	}

	c.finish(ctx, plan, domain.Execution{
		SettlementRef: settlement.Ref,
		BundleRef:     staged.BundleID,
		ActualProfit:  settlement.ActualProfit,
		ResourceCost:  settlement.ResourceCost,
		Status:        domain.ExecutionCompleted,
	}, started)
}

// finish writes the execution row and the terminal plan status.
func (c *Coordinator) finish(ctx context.Context, plan domain.Plan, exec domain.Execution, started time.Time) {
	exec.ID = uuid.NewString()
	exec.PlanID = plan.ID
	exec.ExpectedProfit = plan.ExpectedProfit
	exec.Duration = c.now().Sub(started)
	exec.CreatedAt = c.now().UTC()

	if err := c.execs.Insert(ctx, exec); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		c.logger.ErrorContext(ctx, "execution record write failed",
			slog.String("plan_id", plan.ID),
			slog.String("error", err.Error()),
		)
	}

	target := domain.PlanExecuted
	if exec.Status == domain.ExecutionFailed {
		target = domain.PlanFailed
	}
	if err := c.plans.Finish(ctx, plan.ID, target); err != nil {
		c.logger.ErrorContext(ctx, "plan finish failed",
			slog.String("plan_id", plan.ID),
			slog.String("error", err.Error()),
		)
	}

	if exec.Status == domain.ExecutionCompleted {
		c.logger.InfoContext(ctx, "plan executed",
			slog.String("plan_id", plan.ID),
			slog.Float64("actual_profit", exec.ActualProfit),
			slog.Duration("duration", exec.Duration),
		)
		c.notify(ctx, notify.EventPlanExecuted, fmt.Sprintf(
			"plan %s executed: $%.2f realized (expected $%.2f)",
			plan.ID, exec.ActualProfit, plan.ExpectedProfit,
		))
	} else {
		c.logger.WarnContext(ctx, "plan failed",
			slog.String("plan_id", plan.ID),
			slog.String("reason", exec.FailureReason),
		)
		c.notify(ctx, notify.EventPlanFailed, fmt.Sprintf(
			"plan %s failed: %s", plan.ID, exec.FailureReason,
		))
	}
	c.publish(ctx, plan.ID, exec)
}

func (c *Coordinator) notify(ctx context.Context, event, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Send(ctx, event, message)
}

func (c *Coordinator) publish(ctx context.Context, planID string, exec domain.Execution) {
	if c.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":          "plan_finished",
		"plan_id":       planID,
		"status":        exec.Status,
		"actual_profit": exec.ActualProfit,
	})
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, "events", payload); err != nil {
		c.logger.WarnContext(ctx, "event publish failed", slog.String("error", err.Error()))
	}
}

// RunLoop ticks on the configured interval until the context is cancelled.
func (c *Coordinator) RunLoop(ctx context.Context) error {
	if err := c.Tick(ctx); err != nil {
		c.logger.Error("tick failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				c.logger.Error("tick failed", slog.String("error", err.Error()))
			}
		}
	}
}
