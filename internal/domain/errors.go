package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidEntry     = errors.New("invalid entry parameters")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrStopAboveEntry   = errors.New("stop at or above entry price")
	ErrMaxPositions     = errors.New("max open positions reached")
	ErrDuplicateTicker  = errors.New("ticker already has an open position")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrZeroShares       = errors.New("position size rounds to zero shares")
	ErrPositionClosed   = errors.New("position already closed")
	ErrPositionNotOpen  = errors.New("position not open")
	ErrStopDecrease     = errors.New("stop price cannot decrease")
	ErrSnapshotExists   = errors.New("snapshot already exists for date")
	ErrMissingPrice     = errors.New("missing price for open position")
	ErrWSDisconnect     = errors.New("websocket disconnected")
	ErrLockHeld         = errors.New("lock already held")
)

// ErrPositionNotFound wraps ErrNotFound so callers can match either the
// specific or the general sentinel.
var ErrPositionNotFound = fmt.Errorf("position %w", ErrNotFound)
