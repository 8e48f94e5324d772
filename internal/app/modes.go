package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/coordinator"
	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/detector"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/gate"
	"github.com/alanyoungcy/crossarb/internal/optimizer"
	"github.com/alanyoungcy/crossarb/internal/planner"
	"github.com/alanyoungcy/crossarb/internal/platform/kettle"
	"github.com/alanyoungcy/crossarb/internal/platform/oracle"
	"github.com/alanyoungcy/crossarb/internal/pricing"
	"github.com/alanyoungcy/crossarb/internal/server"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/ws"
	"github.com/alanyoungcy/crossarb/internal/service"
	"github.com/alanyoungcy/crossarb/internal/settle"
	"github.com/alanyoungcy/crossarb/internal/stager"
)

// buildPriceSource constructs the configured price source, wrapped in the
// quote cache mirror when a cache is available.
func (a *App) buildPriceSource(ctx context.Context, deps *Dependencies) (pricing.Source, error) {
	var source pricing.Source

	switch a.cfg.Pricing.Source {
	case "sim":
		source = pricing.NewSimSource()
	case "feed":
		endpoints := make(map[string]pricing.VenueEndpoint, len(a.cfg.Pricing.Venues))
		for _, v := range a.cfg.Pricing.Venues {
			endpoints[v.Name] = pricing.VenueEndpoint{
				RPCURL: v.RPCURL,
				Feeds:  v.Feeds,
			}
		}
		feed, err := pricing.Dial(ctx, endpoints)
		if err != nil {
			return nil, fmt.Errorf("app: dial price feeds: %w", err)
		}
		source = feed
	default:
		return nil, fmt.Errorf("app: unsupported pricing source %q", a.cfg.Pricing.Source)
	}

	if deps.Quotes != nil {
		source = pricing.NewCachingSource(source, deps.Quotes)
	}
	return source, nil
}

// buildDetector assembles the opportunity detector.
func (a *App) buildDetector(source pricing.Source, deps *Dependencies) *detector.Detector {
	tuples := make([]domain.WatchTuple, 0, len(a.cfg.Detector.Tuples))
	for _, t := range a.cfg.Detector.Tuples {
		tuples = append(tuples, domain.WatchTuple{
			Token:  t.Token,
			VenueA: t.VenueA,
			VenueB: t.VenueB,
		})
	}

	return detector.New(detector.Config{
		Interval:     a.cfg.Detector.Interval.Duration,
		MinSpreadBps: a.cfg.Detector.MinSpreadBps,
		ProfitScale:  a.cfg.Detector.ProfitScale,
		SeenTTL:      a.cfg.Detector.SeenTTL.Duration,
		FetchTimeout: a.cfg.Pricing.FetchTimeout.Duration,
		Tuples:       tuples,
	}, source, deps.Opportunities, deps.Seen, deps.Bus, a.logger)
}

// buildPlanner assembles the sizing optimizer, validation gate, and planner.
func (a *App) buildPlanner(deps *Dependencies) *planner.Planner {
	opt := optimizer.New(optimizer.Config{
		CandidateSizesUSD: a.cfg.Optimizer.CandidateSizesUSD,
		MaxTradeSizeUSD:   a.cfg.Optimizer.MaxTradeSizeUSD,
		MinProfitBps:      a.cfg.Optimizer.MinProfitBps,
		BridgeFeeUSD:      a.cfg.Optimizer.BridgeFeeUSD,
		BaseGasUSD:        a.cfg.Optimizer.BaseGasUSD,
		LargeTradeGasUSD:  a.cfg.Optimizer.LargeTradeGasUSD,
		SlippageBaseBps:   a.cfg.Optimizer.SlippageBaseBps,
		DefaultSlipBps:    a.cfg.Optimizer.DefaultSlipBps,
	})

	var oracleImpl gate.Oracle
	if a.cfg.Gate.Oracle == "http" {
		oracleImpl = oracle.NewClient(a.cfg.Gate.URL, a.cfg.Gate.APIKey)
	} else {
		oracleImpl = gate.NewRuleOracle()
	}

	g := gate.New(gate.Config{
		Timeout:       a.cfg.Gate.Timeout.Duration,
		ConfidenceMin: a.cfg.Gate.ConfidenceMin,
		RatePerMinute: a.cfg.Gate.RatePerMinute,
	}, oracleImpl, deps.Limiter, a.logger)

	return planner.New(planner.Config{
		Interval:       a.cfg.Planner.Interval.Duration,
		Batch:          a.cfg.Planner.Batch,
		DeadlineWindow: a.cfg.Planner.DeadlineWindow.Duration,
		DedupTTL:       a.cfg.Planner.DedupTTL.Duration,
	}, opt, g, deps.Opportunities, deps.Plans, deps.Audit, deps.Bus, a.logger)
}

// buildCoordinator assembles the bundle stager and execution coordinator.
func (a *App) buildCoordinator(deps *Dependencies) (*coordinator.Coordinator, error) {
	var submitter stager.Submitter
	if a.cfg.Stager.URL != "" {
		var signer kettle.BodySigner
		if a.cfg.Signer.PrivateKey != "" || a.cfg.Signer.EncryptedKeyPath != "" {
			key, err := crypto.LoadKey(crypto.KeyConfig{
				RawPrivateKey:    a.cfg.Signer.PrivateKey,
				EncryptedKeyPath: a.cfg.Signer.EncryptedKeyPath,
				KeyPassword:      a.cfg.Signer.KeyPassword,
			})
			if err != nil {
				return nil, fmt.Errorf("app: load signing key: %w", err)
			}
			s, err := crypto.NewSigner(key)
			if err != nil {
				return nil, fmt.Errorf("app: build signer: %w", err)
			}
			signer = s
		}
		submitter = kettle.NewClient(a.cfg.Stager.URL, signer, a.cfg.Stager.SubmitTimeout.Duration)
	} else {
		a.logger.Warn("no staging service configured, using simulated bundle inclusion")
		submitter = stager.NewSimSubmitter()
	}

	st := stager.New(stager.Config{
		PollInterval:  a.cfg.Stager.PollInterval.Duration,
		MaxAttempts:   a.cfg.Stager.MaxAttempts,
		MaxBlockAhead: a.cfg.Stager.MaxBlockAhead,
	}, submitter, deps.Audit, a.logger)

	return coordinator.New(coordinator.Config{
		Interval:      a.cfg.Coordinator.Interval.Duration,
		Batch:         a.cfg.Coordinator.Batch,
		MaxConcurrent: a.cfg.Coordinator.MaxConcurrent,
	}, deps.Plans, deps.Executions, st, settle.NewSimSettler(), deps.Notifier, deps.Bus, a.logger), nil
}

// buildServer assembles the read-only API server and its WebSocket hub.
func (a *App) buildServer(deps *Dependencies) (*server.Server, *ws.Hub) {
	hub := ws.NewHub(deps.Bus, a.logger)

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Opportunities, a.logger),
		Plans:         handler.NewPlanHandler(deps.Plans, a.logger),
		Executions:    handler.NewExecutionHandler(deps.Executions, a.logger),
		Stats:         handler.NewStatsHandler(service.NewStatsService(deps.Opportunities, deps.Executions), a.logger),
		Audit:         handler.NewAuditHandler(deps.Audit, a.logger),
		Quotes:        handler.NewQuoteHandler(deps.Quotes, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	return srv, hub
}

// runServer starts the API server and shuts it down when the context ends.
func (a *App) runServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv, hub := a.buildServer(deps)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runArchiveLoop periodically uploads rows past the retention window to blob
// storage, optionally deleting them afterwards.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	logger := a.logger.With(slog.String("component", "archiver"))

	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			summary, err := deps.Archiver.ArchiveBefore(ctx, cutoff)
			if err != nil {
				logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
				continue
			}
			logger.InfoContext(ctx, "archive run complete",
				slog.Int("opportunities", summary.Opportunities),
				slog.Int("plans", summary.Plans),
				slog.Int("executions", summary.Executions),
			)

			if a.cfg.Archive.DeleteAfter && len(summary.Objects) > 0 {
				deleted, err := deps.Archiver.DeleteArchived(ctx, cutoff)
				if err != nil {
					logger.ErrorContext(ctx, "archive delete failed", slog.String("error", err.Error()))
					continue
				}
				logger.InfoContext(ctx, "archived rows deleted", slog.Int64("rows", deleted))
			}
		}
	}
}

// WatchMode runs only the detector: opportunities are persisted but never
// planned or executed.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	source, err := a.buildPriceSource(ctx, deps)
	if err != nil {
		return err
	}
	return a.buildDetector(source, deps).RunLoop(ctx)
}

// PlanMode runs only the planner: it drains detected opportunities produced
// by a separate watch process sharing the same store.
func (a *App) PlanMode(ctx context.Context, deps *Dependencies) error {
	return a.buildPlanner(deps).RunLoop(ctx)
}

// ExecuteMode runs only the execution coordinator.
func (a *App) ExecuteMode(ctx context.Context, deps *Dependencies) error {
	coord, err := a.buildCoordinator(deps)
	if err != nil {
		return err
	}
	return coord.RunLoop(ctx)
}

// ServeMode runs only the read-only API server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the whole pipeline in one process: detector, planner,
// coordinator, the API server when enabled, and the archive loop when
// archiving is configured. The components still coordinate exclusively
// through the store, exactly as they do when split across processes.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	source, err := a.buildPriceSource(ctx, deps)
	if err != nil {
		return err
	}
	coord, err := a.buildCoordinator(deps)
	if err != nil {
		return err
	}

	det := a.buildDetector(source, deps)
	plan := a.buildPlanner(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return det.RunLoop(ctx) })
	g.Go(func() error { return plan.RunLoop(ctx) })
	g.Go(func() error { return coord.RunLoop(ctx) })

	if a.cfg.Server.Enabled {
		a.runServer(ctx, g, deps)
	}
	if deps.Archiver != nil {
		g.Go(func() error { return a.runArchiveLoop(ctx, deps) })
	}

	return g.Wait()
}
