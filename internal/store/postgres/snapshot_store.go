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

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `date, cash, positions_value, total_equity, daily_pnl,
	daily_pnl_pct, total_return_pct, peak_value, max_drawdown_pct,
	open_positions, benchmark_close, created_at`

func scanSnapshot(row pgx.Row) (domain.Snapshot, error) {
	var s domain.Snapshot
	err := row.Scan(
		&s.Date, &s.Cash, &s.PositionsValue, &s.TotalEquity, &s.DailyPnL,
		&s.DailyPnLPct, &s.TotalReturnPct, &s.PeakValue, &s.MaxDrawdownPct,
		&s.OpenPositions, &s.BenchmarkClose, &s.CreatedAt,
	)
	return s, err
}

func scanSnapshots(rows pgx.Rows) ([]domain.Snapshot, error) {
	defer rows.Close()
	var out []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Insert appends the snapshot for its date. The date primary key makes a
// second snapshot for the same date fail with ErrSnapshotExists.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.Snapshot) error {
	snap.Date = domain.TradingDate(snap.Date)
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (
			date, cash, positions_value, total_equity, daily_pnl,
			daily_pnl_pct, total_return_pct, peak_value, max_drawdown_pct,
			open_positions, benchmark_close, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		snap.Date, snap.Cash, snap.PositionsValue, snap.TotalEquity, snap.DailyPnL,
		snap.DailyPnLPct, snap.TotalReturnPct, snap.PeakValue, snap.MaxDrawdownPct,
		snap.OpenPositions, snap.BenchmarkClose, snap.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: snapshot %s: %w",
				snap.Date.Format("2006-01-02"), domain.ErrSnapshotExists)
		}
		return fmt.Errorf("postgres: insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot by date.
func (s *SnapshotStore) Latest(ctx context.Context) (domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+snapshotCols+` FROM snapshots ORDER BY date DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, fmt.Errorf("postgres: latest snapshot: %w", domain.ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	return snap, nil
}

// GetByDate returns the snapshot for the given date.
func (s *SnapshotStore) GetByDate(ctx context.Context, date time.Time) (domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+snapshotCols+` FROM snapshots WHERE date = $1`, domain.TradingDate(date))
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, fmt.Errorf("postgres: snapshot %s: %w",
				domain.TradingDate(date).Format("2006-01-02"), domain.ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: get snapshot: %w", err)
	}
	return snap, nil
}

// ListRange returns snapshots with from <= date <= to, oldest first.
func (s *SnapshotStore) ListRange(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+snapshotCols+` FROM snapshots
		WHERE date >= $1 AND date <= $2
		ORDER BY date`, domain.TradingDate(from), domain.TradingDate(to))
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	out, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	return out, nil
}

// ListBefore returns snapshots dated strictly before the cutoff, oldest
// first.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+snapshotCols+` FROM snapshots
		WHERE date < $1
		ORDER BY date`, domain.TradingDate(before))
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before: %w", err)
	}
	out, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before: %w", err)
	}
	return out, nil
}

// DeleteBefore removes snapshots dated strictly before the cutoff.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM snapshots WHERE date < $1`, domain.TradingDate(before))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
