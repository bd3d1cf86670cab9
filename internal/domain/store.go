package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Ledger persists positions and the portfolio cash account. Every mutating
// call is atomic: position row and cash balance move together or not at all.
// Only one writer per portfolio may be active at a time; reads are free.
type Ledger interface {
	// Open validates and inserts a new open position and debits its cost
	// from cash. Fails with ErrInvalidEntry, ErrInsufficientCash or
	// ErrDuplicateTicker without mutating anything.
	Open(ctx context.Context, pos Position) (Position, error)

	// Close marks an open position closed at the given fill, computes the
	// realized return fields and credits the proceeds to cash.
	Close(ctx context.Context, id string, exitDate time.Time, exitPrice float64, reason ExitReason) (Position, error)

	// UpdateStop raises the protective stop of an open position. Decreases
	// fail with ErrStopDecrease; equal stops are a no-op. The running
	// highest price ratchets alongside.
	UpdateStop(ctx context.Context, id string, stop float64, stopType StopType, highest float64) (Position, error)

	Get(ctx context.Context, id string) (Position, error)
	GetOpenByTicker(ctx context.Context, ticker string) (Position, error)

	// ListOpen returns open positions ordered by entry date, oldest first.
	ListOpen(ctx context.Context) ([]Position, error)
	ListClosed(ctx context.Context, opts ListOpts) ([]Position, error)
	CountOpen(ctx context.Context) (int, error)

	Balance(ctx context.Context) (CashBalance, error)

	// Archival queries over closed positions, cut by exit date.
	ListClosedBefore(ctx context.Context, before time.Time) ([]Position, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotStore persists the append-only daily snapshot series.
type SnapshotStore interface {
	// Insert appends the snapshot for its date. A snapshot already recorded
	// for that date fails with ErrSnapshotExists.
	Insert(ctx context.Context, snap Snapshot) error

	// Latest returns the most recent snapshot, or ErrNotFound when the
	// series is empty.
	Latest(ctx context.Context) (Snapshot, error)

	GetByDate(ctx context.Context, date time.Time) (Snapshot, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Snapshot, error)

	ListBefore(ctx context.Context, before time.Time) ([]Snapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// EarningsStore persists the next known earnings date per ticker.
type EarningsStore interface {
	Upsert(ctx context.Context, e EarningsDate) error
	Get(ctx context.Context, ticker string) (EarningsDate, error)
	List(ctx context.Context) ([]EarningsDate, error)
}
