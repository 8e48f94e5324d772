// Package stager submits execution bundles to the staging service and polls
// them to a definitive outcome.
package stager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Submitter is the staging service surface the stager depends on.
type Submitter interface {
	Submit(ctx context.Context, bundle domain.Bundle) (string, error)
	Status(ctx context.Context, bundleID string) (domain.BundleStatus, string, error)
}

// Config holds staging parameters.
type Config struct {
	PollInterval  time.Duration
	MaxAttempts   int
	MaxBlockAhead int
}

// Stager drives one bundle from submission to a definitive outcome. Polling
// is strictly bounded: after MaxAttempts checks without inclusion the bundle
// is failed, never left pending. Both outcomes land in the audit log.
type Stager struct {
	cfg    Config
	client Submitter
	audit  domain.AuditStore
	logger *slog.Logger

	// sleep is swapped in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Stager.
func New(cfg Config, client Submitter, audit domain.AuditStore, logger *slog.Logger) *Stager {
	return &Stager{
		cfg:    cfg,
		client: client,
		audit:  audit,
		logger: logger.With(slog.String("component", "stager")),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stage builds, submits, and polls a bundle for the plan. The returned
// StageResult always carries a terminal bundle status unless the error is
// non-nil (submission failure or cancelled context).
func (s *Stager) Stage(ctx context.Context, plan domain.Plan) (domain.StageResult, error) {
	bundle := BuildBundle(plan, s.cfg.MaxBlockAhead)

	bundleID, err := s.client.Submit(ctx, bundle)
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("stager: submit: %w", err)
	}

	s.logger.InfoContext(ctx, "bundle submitted",
		slog.String("bundle_id", bundleID),
		slog.String("plan_id", plan.ID),
		slog.Int("steps", len(bundle.Body)),
	)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return domain.StageResult{}, err
		}

		status, block, err := s.client.Status(ctx, bundleID)
		if err != nil {
			// transient poll errors count as an attempt
			s.logger.WarnContext(ctx, "status poll failed",
				slog.String("bundle_id", bundleID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch status {
		case domain.BundleIncluded:
			result := domain.StageResult{
				BundleID:       bundleID,
				Status:         domain.BundleIncluded,
				InclusionBlock: block,
				Attempts:       attempt,
			}
			if err := s.audit.Log(ctx, "bundle_included", map[string]any{
				"bundle_id":       bundleID,
				"plan_id":         plan.ID,
				"inclusion_block": block,
				"attempts":        attempt,
			}); err != nil {
				s.logger.WarnContext(ctx, "audit write failed",
					slog.String("event", "bundle_included"),
					slog.String("bundle_id", bundleID),
					slog.String("error", err.Error()),
				)
			}
			return result, nil
		case domain.BundleFailed:
			return s.failed(ctx, bundleID, plan.ID, attempt, "staging service reported failure"), nil
		}
		// pending: keep polling
	}

	return s.failed(ctx, bundleID, plan.ID, s.cfg.MaxAttempts, "inclusion attempts exhausted"), nil
}

func (s *Stager) failed(ctx context.Context, bundleID, planID string, attempts int, reason string) domain.StageResult {
	s.logger.WarnContext(ctx, "bundle failed",
		slog.String("bundle_id", bundleID),
		slog.String("plan_id", planID),
		slog.String("reason", reason),
	)
	if err := s.audit.Log(ctx, "bundle_failed", map[string]any{
		"bundle_id": bundleID,
		"plan_id":   planID,
		"attempts":  attempts,
		"reason":    reason,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed",
			slog.String("event", "bundle_failed"),
			slog.String("bundle_id", bundleID),
			slog.String("error", err.Error()),
		)
	}
	return domain.StageResult{
		BundleID: bundleID,
		Status:   domain.BundleFailed,
		Attempts: attempts,
	}
}
