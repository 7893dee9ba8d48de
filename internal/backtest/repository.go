package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/quantfold/internal/contracts"
)

// Repository persists backtest runs and their daily ledgers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a backtest result repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores a completed run's summary and full ledger in one
// transaction. The config hash ties the stored result to the exact
// strategy configuration that produced it.
func (r *Repository) SaveRun(ctx context.Context, runID, configHash string, result *Result) error {
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest.runs (
			run_id, config_hash, start_date, end_date,
			trading_days, rebalance_count, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			config_hash = EXCLUDED.config_hash,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			trading_days = EXCLUDED.trading_days,
			rebalance_count = EXCLUDED.rebalance_count,
			summary = EXCLUDED.summary,
			created_at = EXCLUDED.created_at
	`,
		runID, configHash, result.StartDate, result.EndDate,
		result.TradingDays, result.RebalanceCount, summaryJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM backtest.ledger WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("failed to clear old ledger: %w", err)
	}

	query := `
		INSERT INTO backtest.ledger (
			run_id, date, portfolio_value, benchmark_value, turnover, cost, degraded
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, rec := range result.Ledger {
		_, err := tx.Exec(ctx, query,
			runID, rec.Date, rec.PortfolioValue, rec.BenchmarkValue,
			rec.Turnover, rec.Cost, rec.Degraded,
		)
		if err != nil {
			return fmt.Errorf("failed to insert ledger record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSummary retrieves a stored run's summary statistics.
func (r *Repository) GetSummary(ctx context.Context, runID string) (*Summary, error) {
	var summaryJSON []byte
	err := r.pool.QueryRow(ctx,
		"SELECT summary FROM backtest.runs WHERE run_id = $1", runID,
	).Scan(&summaryJSON)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(summaryJSON, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &summary, nil
}

// GetLedger retrieves a stored run's daily ledger, oldest first.
func (r *Repository) GetLedger(ctx context.Context, runID string) ([]contracts.PerformanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date, portfolio_value, benchmark_value, turnover, cost, degraded
		FROM backtest.ledger
		WHERE run_id = $1
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	ledger := make([]contracts.PerformanceRecord, 0)
	for rows.Next() {
		var rec contracts.PerformanceRecord
		err := rows.Scan(
			&rec.Date, &rec.PortfolioValue, &rec.BenchmarkValue,
			&rec.Turnover, &rec.Cost, &rec.Degraded,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		ledger = append(ledger, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ledger, nil
}
