package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockradar/internal/domain"
)

// EarningsStore implements domain.EarningsStore using PostgreSQL.
type EarningsStore struct {
	pool *pgxpool.Pool
}

// NewEarningsStore creates an EarningsStore backed by the given pool.
func NewEarningsStore(pool *pgxpool.Pool) *EarningsStore {
	return &EarningsStore{pool: pool}
}

// Upsert inserts or replaces the earnings date for a ticker.
func (s *EarningsStore) Upsert(ctx context.Context, e domain.EarningsDate) error {
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO earnings_dates (ticker, report_date, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker) DO UPDATE SET
			report_date = EXCLUDED.report_date,
			fetched_at  = EXCLUDED.fetched_at`,
		e.Ticker, domain.TradingDate(e.ReportDate), e.FetchedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert earnings %s: %w", e.Ticker, err)
	}
	return nil
}

// Get returns the earnings date for a ticker.
func (s *EarningsStore) Get(ctx context.Context, ticker string) (domain.EarningsDate, error) {
	var e domain.EarningsDate
	err := s.pool.QueryRow(ctx,
		`SELECT ticker, report_date, fetched_at FROM earnings_dates WHERE ticker = $1`, ticker).
		Scan(&e.Ticker, &e.ReportDate, &e.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EarningsDate{}, fmt.Errorf("postgres: earnings %s: %w", ticker, domain.ErrNotFound)
		}
		return domain.EarningsDate{}, fmt.Errorf("postgres: earnings %s: %w", ticker, err)
	}
	return e, nil
}

// List returns all known earnings dates ordered by ticker.
func (s *EarningsStore) List(ctx context.Context) ([]domain.EarningsDate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, report_date, fetched_at FROM earnings_dates ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list earnings: %w", err)
	}
	defer rows.Close()

	var out []domain.EarningsDate
	for rows.Next() {
		var e domain.EarningsDate
		if err := rows.Scan(&e.Ticker, &e.ReportDate, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan earnings: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list earnings rows: %w", err)
	}
	return out, nil
}

var _ domain.EarningsStore = (*EarningsStore)(nil)
