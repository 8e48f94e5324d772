// Package detector scans venue pairs for crossable price spreads and writes
// opportunities to the store.
package detector

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
	"github.com/alanyoungcy/crossarb/internal/pricing"
)

// Advancer is implemented by price sources that need a nudge between scans
// (the simulated source).
type Advancer interface {
	Advance()
}

// Config holds detector parameters.
type Config struct {
	Interval     time.Duration
	MinSpreadBps float64
	// ProfitScale is the notional USD size used for the pre-sizing profit
	// estimate.
	ProfitScale float64
	SeenTTL     time.Duration
	// FetchTimeout bounds both price reads of a single tuple. Zero means no
	// bound beyond the scan context.
	FetchTimeout time.Duration
	Tuples       []domain.WatchTuple
}

// Detector samples each watch tuple on a fixed interval and persists any
// spread above the threshold as a detected opportunity.
type Detector struct {
	cfg    Config
	source pricing.Source
	opps   domain.OpportunityStore
	seen   domain.SeenCache
	bus    domain.EventBus
	logger *slog.Logger
}

// New creates a Detector. seen and bus may be nil; suppression and event
// publishing are then skipped.
func New(cfg Config, source pricing.Source, opps domain.OpportunityStore, seen domain.SeenCache, bus domain.EventBus, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		source: source,
		opps:   opps,
		seen:   seen,
		bus:    bus,
		logger: logger.With(slog.String("component", "detector")),
	}
}

// Scan runs one pass over all watch tuples. Tuples are sampled concurrently
// and independently: a failing venue read skips that tuple only.
func (d *Detector) Scan(ctx context.Context) error {
	if adv, ok := d.source.(Advancer); ok {
		adv.Advance()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, tuple := range d.cfg.Tuples {
		tuple := tuple
		g.Go(func() error {
			if err := d.scanTuple(ctx, tuple); err != nil {
				// isolation: log and keep scanning the rest
				d.logger.ErrorContext(ctx, "tuple scan failed",
					slog.String("token", tuple.Token),
					slog.String("venue_a", tuple.VenueA),
					slog.String("venue_b", tuple.VenueB),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Detector) scanTuple(ctx context.Context, tuple domain.WatchTuple) error {
	fetchCtx := ctx
	if d.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, d.cfg.FetchTimeout)
		defer cancel()
	}

	priceA, err := d.source.Price(fetchCtx, tuple.VenueA, tuple.Token)
	if err != nil {
		return fmt.Errorf("detector: price %s/%s: %w", tuple.VenueA, tuple.Token, err)
	}
	priceB, err := d.source.Price(fetchCtx, tuple.VenueB, tuple.Token)
	if err != nil {
		return fmt.Errorf("detector: price %s/%s: %w", tuple.VenueB, tuple.Token, err)
	}

	// The threshold is strict: a spread exactly at MinSpreadBps is skipped.
	spread := SpreadBps(priceA, priceB)
	if spread <= d.cfg.MinSpreadBps {
		return nil
	}

	if d.seen != nil {
		key := fmt.Sprintf("opp:%s:%s:%s", tuple.Token, tuple.VenueA, tuple.VenueB)
		dup, err := d.seen.Seen(ctx, key, d.cfg.SeenTTL)
		if err != nil {
			// advisory cache: fall through and emit
			d.logger.WarnContext(ctx, "seen cache unavailable", slog.String("error", err.Error()))
		} else if dup {
			return nil
		}
	}

	opp := domain.Opportunity{
		ID:             uuid.NewString(),
		Token:          tuple.Token,
		VenueA:         tuple.VenueA,
		VenueB:         tuple.VenueB,
		PriceA:         priceA,
		PriceB:         priceB,
		SpreadBps:      spread,
		ProfitEstimate: EstimateProfit(spread, d.cfg.ProfitScale),
		Status:         domain.OpportunityDetected,
		DetectedAt:     time.Now().UTC(),
	}

	if err := d.opps.Insert(ctx, opp); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("detector: insert opportunity: %w", err)
	}

	d.logger.InfoContext(ctx, "opportunity detected",
		slog.String("id", opp.ID),
		slog.String("token", opp.Token),
		slog.Float64("spread_bps", opp.SpreadBps),
		slog.String("buy_venue", opp.BuyVenue()),
		slog.String("sell_venue", opp.SellVenue()),
	)

	d.publish(ctx, opp)
	return nil
}

func (d *Detector) publish(ctx context.Context, opp domain.Opportunity) {
	if d.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":       "opportunity_detected",
		"id":         opp.ID,
		"token":      opp.Token,
		"spread_bps": opp.SpreadBps,
	})
	if err != nil {
		return
	}
	if err := d.bus.Publish(ctx, "events", payload); err != nil {
		d.logger.WarnContext(ctx, "event publish failed", slog.String("error", err.Error()))
	}
}

// RunLoop scans on the configured interval until the context is cancelled.
func (d *Detector) RunLoop(ctx context.Context) error {
	// Run immediately on start.
	if err := d.Scan(ctx); err != nil {
		d.logger.Error("scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("detector loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Scan(ctx); err != nil {
				d.logger.Error("scan failed", slog.String("error", err.Error()))
			}
		}
	}
}
