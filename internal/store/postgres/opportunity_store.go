package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, token, venue_a, venue_b, price_a, price_b,
	spread_bps, profit_estimate, status, detected_at`

// Insert writes a newly detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, token, venue_a, venue_b, price_a, price_b,
			spread_bps, profit_estimate, status, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Token, opp.VenueA, opp.VenueB,
		opp.PriceA, opp.PriceB, opp.SpreadBps, opp.ProfitEstimate,
		string(opp.Status), opp.DetectedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// GetByID returns a single opportunity.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE id = $1`

	opp, err := scanOpportunity(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// ListDetected returns up to limit opportunities still awaiting planning,
// newest first.
func (s *OpportunityStore) ListDetected(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities WHERE status = $1
		ORDER BY detected_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, string(domain.OpportunityDetected), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list detected opportunities: %w", err)
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

// ListRecent returns the most recent opportunities regardless of status.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities ORDER BY detected_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

// Transition moves an opportunity between statuses with a conditional write.
func (s *OpportunityStore) Transition(ctx context.Context, id string, from, to domain.OpportunityStatus) error {
	const query = `UPDATE opportunities SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := s.pool.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("postgres: transition opportunity %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClaimLost
	}
	return nil
}

// ListBefore returns opportunities detected strictly before the cutoff.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before, err)
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

// DeleteBefore removes opportunities detected strictly before the cutoff.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Aggregate computes spread statistics over opportunities detected since the
// given time.
func (s *OpportunityStore) Aggregate(ctx context.Context, since time.Time) (domain.OpportunityStats, error) {
	const query = `
		SELECT COUNT(*),
		       COALESCE(AVG(spread_bps), 0),
		       COALESCE(MAX(spread_bps), 0)
		FROM opportunities WHERE detected_at >= $1`

	var stats domain.OpportunityStats
	err := s.pool.QueryRow(ctx, query, since).Scan(
		&stats.Count, &stats.AvgSpreadBps, &stats.MaxSpreadBps,
	)
	if err != nil {
		return domain.OpportunityStats{}, fmt.Errorf("postgres: aggregate opportunities: %w", err)
	}
	return stats, nil
}

func scanOpportunity(scanner interface{ Scan(dest ...any) error }) (domain.Opportunity, error) {
	var opp domain.Opportunity
	var status string
	err := scanner.Scan(
		&opp.ID, &opp.Token, &opp.VenueA, &opp.VenueB,
		&opp.PriceA, &opp.PriceB, &opp.SpreadBps, &opp.ProfitEstimate,
		&status, &opp.DetectedAt,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}
	opp.Status = domain.OpportunityStatus(status)
	return opp, nil
}

func collectOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
