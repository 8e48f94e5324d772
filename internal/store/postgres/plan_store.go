package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL. Every status
// transition is a single conditional UPDATE; concurrent coordinators race on
// those writes and exactly one wins each.
type PlanStore struct {
	pool *pgxpool.Pool
}

// NewPlanStore creates a new PlanStore backed by the given connection pool.
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

const planSelectCols = `id, opportunity_id, token, direction, size_usd, size_tokens,
	expected_profit, profit_bps, buy_venue, sell_venue, buy_price, sell_price,
	deadline, status, validation, created_at, updated_at`

// Create inserts a new plan, including its validation decision. Plans enter
// the store already carrying a terminal or approved verdict; a plan row with
// status approved and a NULL validation column never exists.
func (s *PlanStore) Create(ctx context.Context, p domain.Plan) error {
	var validation []byte
	if p.Validation != nil {
		b, err := json.Marshal(p.Validation)
		if err != nil {
			return fmt.Errorf("postgres: marshal plan validation: %w", err)
		}
		validation = b
	}

	const query = `
		INSERT INTO plans (
			id, opportunity_id, token, direction, size_usd, size_tokens,
			expected_profit, profit_bps, buy_venue, sell_venue, buy_price, sell_price,
			deadline, status, validation, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.OpportunityID, p.Token, p.Direction, p.SizeUSD, p.SizeTokens,
		p.ExpectedProfit, p.ProfitBps, p.BuyVenue, p.SellVenue, p.BuyPrice, p.SellPrice,
		p.Deadline, string(p.Status), validation, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create plan %s: %w", p.ID, err)
	}
	return nil
}

// GetByID returns a single plan.
func (s *PlanStore) GetByID(ctx context.Context, id string) (domain.Plan, error) {
	query := `SELECT ` + planSelectCols + ` FROM plans WHERE id = $1`

	p, err := scanPlan(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Plan{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("postgres: get plan %s: %w", id, err)
	}
	return p, nil
}

// ListExecutable returns approved plans with a live deadline, most profitable
// first. The deadline filter here is advisory; Claim re-checks it.
func (s *PlanStore) ListExecutable(ctx context.Context, now time.Time, limit int) ([]domain.Plan, error) {
	query := `SELECT ` + planSelectCols + `
		FROM plans
		WHERE status = $1 AND deadline > $2
		ORDER BY expected_profit DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, string(domain.PlanApproved), now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executable plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

// ListActive returns plans currently approved or executing.
func (s *PlanStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Plan, error) {
	query := `SELECT ` + planSelectCols + `
		FROM plans WHERE status IN ($1, $2) ORDER BY created_at DESC`
	args := []any{string(domain.PlanApproved), string(domain.PlanExecuting)}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

// ListRecent returns the most recently created plans regardless of status.
func (s *PlanStore) ListRecent(ctx context.Context, limit int) ([]domain.Plan, error) {
	query := `SELECT ` + planSelectCols + `
		FROM plans ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

// Claim atomically moves a plan from approved to executing. The deadline
// check lives inside the UPDATE so an expired plan can never be claimed, no
// matter how stale the caller's read was.
func (s *PlanStore) Claim(ctx context.Context, id string, now time.Time) error {
	const query = `
		UPDATE plans SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deadline > $4`

	tag, err := s.pool.Exec(ctx, query,
		string(domain.PlanExecuting), id, string(domain.PlanApproved), now,
	)
	if err != nil {
		return fmt.Errorf("postgres: claim plan %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClaimLost
	}
	return nil
}

// Finish moves a claimed plan from executing to a terminal outcome.
func (s *PlanStore) Finish(ctx context.Context, id string, to domain.PlanStatus) error {
	if to != domain.PlanExecuted && to != domain.PlanFailed {
		return fmt.Errorf("postgres: finish plan %s: invalid target status %q", id, to)
	}

	const query = `
		UPDATE plans SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	tag, err := s.pool.Exec(ctx, query, string(to), id, string(domain.PlanExecuting))
	if err != nil {
		return fmt.Errorf("postgres: finish plan %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClaimLost
	}
	return nil
}

// ExpireDue sweeps approved plans whose deadline has passed.
func (s *PlanStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE plans SET status = $1, updated_at = NOW()
		WHERE status = $2 AND deadline <= $3`

	tag, err := s.pool.Exec(ctx, query,
		string(domain.PlanExpired), string(domain.PlanApproved), now,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire due plans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListBefore returns plans created strictly before the cutoff.
func (s *PlanStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Plan, error) {
	query := `SELECT ` + planSelectCols + `
		FROM plans WHERE created_at < $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list plans before %s: %w", before, err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

// DeleteBefore removes plans created strictly before the cutoff.
func (s *PlanStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM plans WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete plans before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanPlan(scanner interface{ Scan(dest ...any) error }) (domain.Plan, error) {
	var p domain.Plan
	var status string
	var validation []byte

	err := scanner.Scan(
		&p.ID, &p.OpportunityID, &p.Token, &p.Direction, &p.SizeUSD, &p.SizeTokens,
		&p.ExpectedProfit, &p.ProfitBps, &p.BuyVenue, &p.SellVenue, &p.BuyPrice, &p.SellPrice,
		&p.Deadline, &status, &validation, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Plan{}, err
	}

	p.Status = domain.PlanStatus(status)
	if len(validation) > 0 {
		var d domain.Decision
		if err := json.Unmarshal(validation, &d); err != nil {
			return domain.Plan{}, fmt.Errorf("unmarshal validation: %w", err)
		}
		p.Validation = &d
	}
	return p, nil
}

func collectPlans(rows pgx.Rows) ([]domain.Plan, error) {
	var out []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
