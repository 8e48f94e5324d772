package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given
// connection pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const execSelectCols = `id, plan_id, settlement_ref, bundle_ref,
	expected_profit, actual_profit, resource_cost, duration_ms,
	status, failure_reason, created_at`

// Insert appends one execution record. The unique index on plan_id enforces
// the one-row-per-claimed-plan invariant at the schema level.
func (s *ExecutionStore) Insert(ctx context.Context, exec domain.Execution) error {
	const query = `
		INSERT INTO executions (
			id, plan_id, settlement_ref, bundle_ref,
			expected_profit, actual_profit, resource_cost, duration_ms,
			status, failure_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		exec.ID, exec.PlanID, exec.SettlementRef, exec.BundleRef,
		exec.ExpectedProfit, exec.ActualProfit, exec.ResourceCost,
		exec.Duration.Milliseconds(),
		string(exec.Status), exec.FailureReason, exec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert execution %s: %w", exec.ID, err)
	}
	return nil
}

// GetByPlanID returns the execution record for a plan.
func (s *ExecutionStore) GetByPlanID(ctx context.Context, planID string) (domain.Execution, error) {
	query := `SELECT ` + execSelectCols + ` FROM executions WHERE plan_id = $1`

	exec, err := scanExecution(s.pool.QueryRow(ctx, query, planID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Execution{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Execution{}, fmt.Errorf("postgres: get execution for plan %s: %w", planID, err)
	}
	return exec, nil
}

// ListRecent returns the most recent executions.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `SELECT ` + execSelectCols + `
		FROM executions ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent executions: %w", err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

// Aggregate computes execution outcome statistics since the given time.
func (s *ExecutionStore) Aggregate(ctx context.Context, since time.Time) (domain.ExecutionStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COALESCE(SUM(actual_profit) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(AVG(actual_profit) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(SUM(resource_cost), 0)
		FROM executions WHERE created_at >= $1`

	var stats domain.ExecutionStats
	err := s.pool.QueryRow(ctx, query, since).Scan(
		&stats.Count, &stats.Completed, &stats.Failed,
		&stats.TotalProfit, &stats.AvgProfit, &stats.TotalCost,
	)
	if err != nil {
		return domain.ExecutionStats{}, fmt.Errorf("postgres: aggregate executions: %w", err)
	}
	return stats, nil
}

// ListBefore returns executions created strictly before the cutoff.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Execution, error) {
	query := `SELECT ` + execSelectCols + `
		FROM executions WHERE created_at < $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions before %s: %w", before, err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

// DeleteBefore removes executions created strictly before the cutoff.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanExecution(scanner interface{ Scan(dest ...any) error }) (domain.Execution, error) {
	var exec domain.Execution
	var status string
	var durationMs int64

	err := scanner.Scan(
		&exec.ID, &exec.PlanID, &exec.SettlementRef, &exec.BundleRef,
		&exec.ExpectedProfit, &exec.ActualProfit, &exec.ResourceCost, &durationMs,
		&status, &exec.FailureReason, &exec.CreatedAt,
	)
	if err != nil {
		return domain.Execution{}, err
	}

	exec.Status = domain.ExecutionStatus(status)
	exec.Duration = time.Duration(durationMs) * time.Millisecond
	return exec, nil
}

func collectExecutions(rows pgx.Rows) ([]domain.Execution, error) {
	var out []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}
