package domain

import (
	"fmt"
	"math"
	"time"
)

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// StopType records which regime the protective stop is currently in.
type StopType string

const (
	StopTypeFixed     StopType = "fixed"     // initial stop below entry
	StopTypeBreakeven StopType = "breakeven" // raised to the entry price
	StopTypeTrailing  StopType = "trailing"  // ratcheting under the high
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonStop   ExitReason = "STOP"
	ExitReasonTarget ExitReason = "TARGET"
	ExitReasonManual ExitReason = "MANUAL"
)

// Position is one paper-traded equity position, open or historical.
// Prices are per share; entry and exit dates are UTC trading dates.
type Position struct {
	ID           string
	Ticker       string
	Status       PositionStatus
	EntryDate    time.Time
	EntryPrice   float64
	Shares       int
	InitialStop  float64
	StopPrice    float64
	StopType     StopType
	TargetPrice  float64
	HighestPrice float64
	RiskPerShare float64
	RiskDollars  float64
	RewardRisk   float64
	SignalSource string
	Notes        string

	ExitDate      *time.Time
	ExitPrice     *float64
	ExitReason    ExitReason
	ReturnPct     *float64
	ReturnDollars *float64
	RMultiple     *float64
	DaysHeld      *int

	OpenedAt  time.Time
	UpdatedAt time.Time
}

// Cost returns the cash debited when the position was opened.
func (p Position) Cost() float64 {
	return p.EntryPrice * float64(p.Shares)
}

// MarketValue returns the position value at the given price.
func (p Position) MarketValue(price float64) float64 {
	return price * float64(p.Shares)
}

// ValidateOpen checks the entry parameters of a new position.
func (p Position) ValidateOpen() error {
	switch {
	case p.Ticker == "":
		return fmt.Errorf("%w: empty ticker", ErrInvalidEntry)
	case p.EntryPrice <= 0:
		return fmt.Errorf("%w: entry price %.4f", ErrInvalidEntry, p.EntryPrice)
	case p.Shares <= 0:
		return fmt.Errorf("%w: share count %d", ErrInvalidEntry, p.Shares)
	case p.StopPrice >= p.EntryPrice:
		return fmt.Errorf("%w: stop %.4f at or above entry %.4f", ErrInvalidEntry, p.StopPrice, p.EntryPrice)
	case p.TargetPrice <= p.EntryPrice:
		return fmt.Errorf("%w: target %.4f at or below entry %.4f", ErrInvalidEntry, p.TargetPrice, p.EntryPrice)
	}
	return nil
}

// CloseOut returns a copy of the position marked closed at the given fill,
// with realized return, R-multiple and days held computed. Days held counts
// calendar days between the entry and exit dates.
func (p Position) CloseOut(exitDate time.Time, exitPrice float64, reason ExitReason) Position {
	out := p
	out.Status = PositionStatusClosed
	out.ExitDate = &exitDate
	out.ExitPrice = &exitPrice
	out.ExitReason = reason

	retPct := (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	retDollars := (exitPrice - p.EntryPrice) * float64(p.Shares)
	out.ReturnPct = &retPct
	out.ReturnDollars = &retDollars

	if p.RiskPerShare > 0 {
		r := (exitPrice - p.EntryPrice) / p.RiskPerShare
		out.RMultiple = &r
	}

	days := int(math.Floor(exitDate.Sub(p.EntryDate).Hours() / 24))
	if days < 0 {
		days = 0
	}
	out.DaysHeld = &days

	return out
}
