package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/quantfold/internal/contracts"
)

// PostgresProvider reads price and fundamental history from the data
// schema populated by the ingestion jobs.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

// NewPostgresProvider creates a Postgres-backed provider.
func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// GetPriceHistory retrieves daily bars for a symbol within a date range.
func (p *PostgresProvider) GetPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM data.daily_prices
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := p.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// GetFundamentals retrieves a symbol's dated fundamental snapshots and
// sector. Metric values live in a JSONB column keyed by metric name, so
// new metrics need no schema change.
func (p *PostgresProvider) GetFundamentals(ctx context.Context, symbol string) ([]contracts.FundamentalSnapshot, string, error) {
	var sector string
	err := p.pool.QueryRow(ctx,
		"SELECT sector FROM data.instruments WHERE symbol = $1", symbol,
	).Scan(&sector)
	if err == pgx.ErrNoRows {
		sector = ""
	} else if err != nil {
		return nil, "", fmt.Errorf("query sector: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT as_of, metrics
		FROM data.fundamentals
		WHERE symbol = $1
		ORDER BY as_of ASC
	`, symbol)
	if err != nil {
		return nil, "", fmt.Errorf("query fundamentals: %w", err)
	}
	defer rows.Close()

	var snapshots []contracts.FundamentalSnapshot
	for rows.Next() {
		var snap contracts.FundamentalSnapshot
		var metricsJSON []byte
		if err := rows.Scan(&snap.AsOf, &metricsJSON); err != nil {
			return nil, "", fmt.Errorf("scan fundamentals: %w", err)
		}
		if err := json.Unmarshal(metricsJSON, &snap.Metrics); err != nil {
			return nil, "", fmt.Errorf("unmarshal metrics: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	return snapshots, sector, nil
}

// ListSymbols returns every symbol in the instruments table, sorted.
func (p *PostgresProvider) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT symbol FROM data.instruments ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
