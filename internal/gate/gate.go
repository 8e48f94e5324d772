// Package gate validates draft plans through a decision oracle before they
// are persisted as approved.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Oracle renders a verdict on a draft plan.
type Oracle interface {
	Decide(ctx context.Context, req domain.DecisionRequest) (domain.Decision, error)
}

// Config holds gate parameters.
type Config struct {
	Timeout       time.Duration
	ConfidenceMin int
	// RatePerMinute caps oracle calls across instances; 0 disables.
	RatePerMinute int
}

// Gate wraps an oracle with the approval policy: a plan is approved only
// when the oracle approves AND its confidence strictly exceeds the floor.
// Oracle timeouts and errors become rejections, never approvals.
type Gate struct {
	cfg     Config
	oracle  Oracle
	limiter domain.RateLimiter
	logger  *slog.Logger
}

// New creates a Gate. limiter may be nil to disable rate limiting.
func New(cfg Config, oracle Oracle, limiter domain.RateLimiter, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		oracle:  oracle,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "gate")),
	}
}

// Validate asks the oracle about the draft plan and maps its verdict onto the
// approval policy. A decision is returned in every case except rate limiting
// and must be persisted with the plan whatever the outcome.
func (g *Gate) Validate(ctx context.Context, req domain.DecisionRequest) (domain.Decision, bool, error) {
	if g.limiter != nil && g.cfg.RatePerMinute > 0 {
		allowed, err := g.limiter.Allow(ctx, "gate:oracle", g.cfg.RatePerMinute, time.Minute)
		if err != nil {
			g.logger.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
		} else if !allowed {
			return domain.Decision{
				Approved: false,
				Reason:   "validation rate limit exceeded",
			}, false, domain.ErrRateLimited
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	decision, err := g.oracle.Decide(callCtx, req)
	if err != nil {
		reason := "oracle error: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "oracle timeout"
		}
		g.logger.WarnContext(ctx, "oracle call failed",
			slog.String("token", req.Token),
			slog.String("reason", reason),
		)
		return domain.Decision{Approved: false, Confidence: 0, Reason: reason}, false, nil
	}

	approved := decision.Approved && decision.Confidence > g.cfg.ConfidenceMin

	g.logger.InfoContext(ctx, "plan validated",
		slog.String("token", req.Token),
		slog.Float64("size_usd", req.SizeUSD),
		slog.Bool("approved", approved),
		slog.Int("confidence", decision.Confidence),
	)
	return decision, approved, nil
}
