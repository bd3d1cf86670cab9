// Package memory provides in-memory store implementations used by tests and
// database-less runs. Semantics mirror the Postgres stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockradar/internal/domain"
)

// Ledger is an in-memory implementation of domain.Ledger. The mutex makes
// every mutating call atomic over positions and cash together.
type Ledger struct {
	mu              sync.RWMutex
	positions       map[string]*domain.Position // keyed by position ID
	openByTicker    map[string]string           // ticker -> position ID
	cash            float64
	startingCapital float64
}

// NewLedger creates an in-memory ledger seeded with the starting capital.
func NewLedger(startingCapital float64) (*Ledger, error) {
	if startingCapital <= 0 {
		return nil, fmt.Errorf("memory: %w: starting capital %.2f", domain.ErrInvalidParameter, startingCapital)
	}
	return &Ledger{
		positions:       make(map[string]*domain.Position),
		openByTicker:    make(map[string]string),
		cash:            startingCapital,
		startingCapital: startingCapital,
	}, nil
}

// Open validates and inserts a new open position, debiting its cost from
// cash. Nothing is mutated on failure.
func (l *Ledger) Open(_ context.Context, pos domain.Position) (domain.Position, error) {
	if err := pos.ValidateOpen(); err != nil {
		return domain.Position{}, fmt.Errorf("memory: open: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.openByTicker[pos.Ticker]; exists {
		return domain.Position{}, fmt.Errorf("memory: open %s: %w", pos.Ticker, domain.ErrDuplicateTicker)
	}

	cost := pos.Cost()
	if cost > l.cash {
		return domain.Position{}, fmt.Errorf("memory: open %s: cost %.2f exceeds cash %.2f: %w",
			pos.Ticker, cost, l.cash, domain.ErrInsufficientCash)
	}

	now := time.Now().UTC()
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	pos.Status = domain.PositionStatusOpen
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

	l.cash -= cost
	cp := pos
	l.positions[pos.ID] = &cp
	l.openByTicker[pos.Ticker] = pos.ID
	return pos, nil
}

// Close marks an open position closed at the given fill and credits the
// proceeds to cash.
func (l *Ledger) Close(_ context.Context, id string, exitDate time.Time, exitPrice float64, reason domain.ExitReason) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: close %s: %w", id, domain.ErrPositionNotFound)
	}
	if pos.Status == domain.PositionStatusClosed {
		return domain.Position{}, fmt.Errorf("memory: close %s: %w", id, domain.ErrPositionClosed)
	}

	closed := pos.CloseOut(exitDate, exitPrice, reason)
	closed.UpdatedAt = time.Now().UTC()

	l.cash += closed.MarketValue(exitPrice)
	l.positions[id] = &closed
	delete(l.openByTicker, closed.Ticker)
	return closed, nil
}

// UpdateStop raises the protective stop of an open position. An equal stop
// is a no-op; a lower one fails with ErrStopDecrease.
func (l *Ledger) UpdateStop(_ context.Context, id string, stop float64, stopType domain.StopType, highest float64) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: update stop %s: %w", id, domain.ErrPositionNotFound)
	}
	if pos.Status != domain.PositionStatusOpen {
		return domain.Position{}, fmt.Errorf("memory: update stop %s: %w", id, domain.ErrPositionNotOpen)
	}
	if stop < pos.StopPrice {
		return domain.Position{}, fmt.Errorf("memory: update stop %s: %.4f below %.4f: %w",
			id, stop, pos.StopPrice, domain.ErrStopDecrease)
	}

	pos.StopPrice = stop
	pos.StopType = stopType
	if highest > pos.HighestPrice {
		pos.HighestPrice = highest
	}
	pos.UpdatedAt = time.Now().UTC()
	return *pos, nil
}

// Get returns the position with the given ID.
func (l *Ledger) Get(_ context.Context, id string) (domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: get %s: %w", id, domain.ErrPositionNotFound)
	}
	return *pos, nil
}

// GetOpenByTicker returns the open position for a ticker.
func (l *Ledger) GetOpenByTicker(_ context.Context, ticker string) (domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.openByTicker[ticker]
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: open position %s: %w", ticker, domain.ErrPositionNotFound)
	}
	return *l.positions[id], nil
}

// ListOpen returns open positions ordered by entry date, oldest first.
func (l *Ledger) ListOpen(_ context.Context) ([]domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Position, 0, len(l.openByTicker))
	for _, id := range l.openByTicker {
		out = append(out, *l.positions[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

// ListClosed returns closed positions, most recent exit first.
func (l *Ledger) ListClosed(_ context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Position
	for _, pos := range l.positions {
		if pos.Status == domain.PositionStatusClosed {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExitDate.After(*out[j].ExitDate)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []domain.Position{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// CountOpen returns the number of open positions.
func (l *Ledger) CountOpen(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.openByTicker), nil
}

// Balance returns the cash account.
func (l *Ledger) Balance(_ context.Context) (domain.CashBalance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CashBalance{Cash: l.cash, StartingCapital: l.startingCapital}, nil
}

// ListClosedBefore returns closed positions with an exit date strictly
// before the cutoff.
func (l *Ledger) ListClosedBefore(_ context.Context, before time.Time) ([]domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Position
	for _, pos := range l.positions {
		if pos.Status == domain.PositionStatusClosed && pos.ExitDate.Before(before) {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExitDate.Before(*out[j].ExitDate)
	})
	return out, nil
}

// DeleteClosedBefore removes closed positions with an exit date strictly
// before the cutoff and returns the count removed.
func (l *Ledger) DeleteClosedBefore(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for id, pos := range l.positions {
		if pos.Status == domain.PositionStatusClosed && pos.ExitDate.Before(before) {
			delete(l.positions, id)
			n++
		}
	}
	return n, nil
}

var _ domain.Ledger = (*Ledger)(nil)
