package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockradar/internal/domain"
)

// Ledger implements domain.Ledger using PostgreSQL. Every mutating call
// runs inside a transaction that covers the position row and the portfolio
// cash row together.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given pool and seeds the
// portfolio cash row with the starting capital if it does not exist yet.
func NewLedger(ctx context.Context, pool *pgxpool.Pool, startingCapital float64) (*Ledger, error) {
	if startingCapital <= 0 {
		return nil, fmt.Errorf("postgres: %w: starting capital %.2f", domain.ErrInvalidParameter, startingCapital)
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO portfolio (id, cash, starting_capital)
		VALUES (1, $1, $1)
		ON CONFLICT (id) DO NOTHING`, startingCapital)
	if err != nil {
		return nil, fmt.Errorf("postgres: seed portfolio: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const positionCols = `id, ticker, status, entry_date, entry_price, shares,
	initial_stop, stop_price, stop_type, target_price, highest_price,
	risk_per_share, risk_dollars, reward_risk, signal_source, notes,
	exit_date, exit_price, exit_reason, return_pct, return_dollars,
	r_multiple, days_held, opened_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status, stopType string
	var exitReason *string

	err := row.Scan(
		&p.ID, &p.Ticker, &status, &p.EntryDate, &p.EntryPrice, &p.Shares,
		&p.InitialStop, &p.StopPrice, &stopType, &p.TargetPrice, &p.HighestPrice,
		&p.RiskPerShare, &p.RiskDollars, &p.RewardRisk, &p.SignalSource, &p.Notes,
		&p.ExitDate, &p.ExitPrice, &exitReason, &p.ReturnPct, &p.ReturnDollars,
		&p.RMultiple, &p.DaysHeld, &p.OpenedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionStatus(status)
	p.StopType = domain.StopType(stopType)
	if exitReason != nil {
		p.ExitReason = domain.ExitReason(*exitReason)
	}
	return p, nil
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()
	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Open validates and inserts a new open position, debiting its cost from
// the portfolio cash inside one transaction.
func (l *Ledger) Open(ctx context.Context, pos domain.Position) (domain.Position, error) {
	if err := pos.ValidateOpen(); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: open: %w", err)
	}

	now := time.Now().UTC()
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	pos.Status = domain.PositionStatusOpen
	pos.EntryDate = domain.TradingDate(pos.EntryDate)
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = now
	}
	pos.UpdatedAt = now
	if pos.HighestPrice < pos.EntryPrice {
		pos.HighestPrice = pos.EntryPrice
	}
	if pos.StopType == "" {
		pos.StopType = domain.StopTypeFixed
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: open %s: begin: %w", pos.Ticker, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE portfolio SET cash = cash - $1, updated_at = NOW()
		WHERE id = 1 AND cash >= $1`, pos.Cost())
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: open %s: debit cash: %w", pos.Ticker, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Position{}, fmt.Errorf("postgres: open %s: cost %.2f: %w",
			pos.Ticker, pos.Cost(), domain.ErrInsufficientCash)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO positions (
			id, ticker, status, entry_date, entry_price, shares,
			initial_stop, stop_price, stop_type, target_price, highest_price,
			risk_per_share, risk_dollars, reward_risk, signal_source, notes,
			opened_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18
		)`,
		pos.ID, pos.Ticker, string(pos.Status), pos.EntryDate, pos.EntryPrice, pos.Shares,
		pos.InitialStop, pos.StopPrice, string(pos.StopType), pos.TargetPrice, pos.HighestPrice,
		pos.RiskPerShare, pos.RiskDollars, pos.RewardRisk, pos.SignalSource, pos.Notes,
		pos.OpenedAt, pos.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Position{}, fmt.Errorf("postgres: open %s: %w", pos.Ticker, domain.ErrDuplicateTicker)
		}
		return domain.Position{}, fmt.Errorf("postgres: open %s: insert: %w", pos.Ticker, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: open %s: commit: %w", pos.Ticker, err)
	}
	return pos, nil
}

// Close marks an open position closed at the given fill, computes realized
// returns and credits the proceeds to cash inside one transaction.
func (l *Ledger) Close(ctx context.Context, id string, exitDate time.Time, exitPrice float64, reason domain.ExitReason) (domain.Position, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: close %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+positionCols+` FROM positions WHERE id = $1 FOR UPDATE`, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: close %s: %w", id, domain.ErrPositionNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: close %s: %w", id, err)
	}
	if pos.Status == domain.PositionStatusClosed {
		return domain.Position{}, fmt.Errorf("postgres: close %s: %w", id, domain.ErrPositionClosed)
	}

	closed := pos.CloseOut(domain.TradingDate(exitDate), exitPrice, reason)
	closed.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		UPDATE positions SET
			status         = $2,
			exit_date      = $3,
			exit_price     = $4,
			exit_reason    = $5,
			return_pct     = $6,
			return_dollars = $7,
			r_multiple     = $8,
			days_held      = $9,
			updated_at     = $10
		WHERE id = $1`,
		id, string(closed.Status), closed.ExitDate, closed.ExitPrice, string(closed.ExitReason),
		closed.ReturnPct, closed.ReturnDollars, closed.RMultiple, closed.DaysHeld, closed.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: close %s: update: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE portfolio SET cash = cash + $1, updated_at = NOW() WHERE id = 1`,
		closed.MarketValue(exitPrice))
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: close %s: credit cash: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: close %s: commit: %w", id, err)
	}
	return closed, nil
}

// UpdateStop raises the protective stop of an open position. Equal stops
// are a no-op; decreases fail with ErrStopDecrease.
func (l *Ledger) UpdateStop(ctx context.Context, id string, stop float64, stopType domain.StopType, highest float64) (domain.Position, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: update stop %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+positionCols+` FROM positions WHERE id = $1 FOR UPDATE`, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: update stop %s: %w", id, domain.ErrPositionNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: update stop %s: %w", id, err)
	}
	if pos.Status != domain.PositionStatusOpen {
		return domain.Position{}, fmt.Errorf("postgres: update stop %s: %w", id, domain.ErrPositionNotOpen)
	}
	if stop < pos.StopPrice {
		return domain.Position{}, fmt.Errorf("postgres: update stop %s: %.4f below %.4f: %w",
			id, stop, pos.StopPrice, domain.ErrStopDecrease)
	}

	pos.StopPrice = stop
	pos.StopType = stopType
	if highest > pos.HighestPrice {
		pos.HighestPrice = highest
	}
	pos.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		UPDATE positions SET
			stop_price    = $2,
			stop_type     = $3,
			highest_price = $4,
			updated_at    = $5
		WHERE id = $1`,
		id, pos.StopPrice, string(pos.StopType), pos.HighestPrice, pos.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: update stop %s: update: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: update stop %s: commit: %w", id, err)
	}
	return pos, nil
}

// Get returns the position with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (domain.Position, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+positionCols+` FROM positions WHERE id = $1`, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: get %s: %w", id, domain.ErrPositionNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: get %s: %w", id, err)
	}
	return pos, nil
}

// GetOpenByTicker returns the open position for a ticker.
func (l *Ledger) GetOpenByTicker(ctx context.Context, ticker string) (domain.Position, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE ticker = $1 AND status = 'open'`, ticker)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: open position %s: %w", ticker, domain.ErrPositionNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: open position %s: %w", ticker, err)
	}
	return pos, nil
}

// ListOpen returns open positions ordered by entry date, oldest first.
func (l *Ledger) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+positionCols+` FROM positions
		WHERE status = 'open'
		ORDER BY entry_date, opened_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open: %w", err)
	}
	out, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open: %w", err)
	}
	return out, nil
}

// ListClosed returns closed positions, most recent exit first.
func (l *Ledger) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionCols + ` FROM positions WHERE status = 'closed' ORDER BY exit_date DESC, updated_at DESC`
	args := []any{}
	argIdx := 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed: %w", err)
	}
	out, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed: %w", err)
	}
	return out, nil
}

// CountOpen returns the number of open positions.
func (l *Ledger) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := l.pool.QueryRow(ctx, `SELECT COUNT(*) FROM positions WHERE status = 'open'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count open: %w", err)
	}
	return n, nil
}

// Balance returns the portfolio cash account.
func (l *Ledger) Balance(ctx context.Context) (domain.CashBalance, error) {
	var bal domain.CashBalance
	err := l.pool.QueryRow(ctx,
		`SELECT cash, starting_capital FROM portfolio WHERE id = 1`).
		Scan(&bal.Cash, &bal.StartingCapital)
	if err != nil {
		return domain.CashBalance{}, fmt.Errorf("postgres: balance: %w", err)
	}
	return bal, nil
}

// ListClosedBefore returns closed positions with an exit date strictly
// before the cutoff, oldest first.
func (l *Ledger) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Position, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+positionCols+` FROM positions
		WHERE status = 'closed' AND exit_date < $1
		ORDER BY exit_date`, domain.TradingDate(before))
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed before: %w", err)
	}
	out, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed before: %w", err)
	}
	return out, nil
}

// DeleteClosedBefore removes closed positions with an exit date strictly
// before the cutoff.
func (l *Ledger) DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM positions WHERE status = 'closed' AND exit_date < $1`,
		domain.TradingDate(before))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete closed before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.Ledger = (*Ledger)(nil)
