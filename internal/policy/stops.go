// Package policy holds the pure stop, target and sizing rules applied to
// every position. Nothing here touches storage or the network; callers pass
// state in and persist results themselves.
package policy

import (
	"fmt"

	"stockradar/internal/domain"
)

const (
	DefaultStopPct             = 0.07 // initial stop 7% below entry
	DefaultTargetPct           = 0.20 // profit target 20% above entry
	DefaultTrailPct            = 0.10 // trail 10% below the running high
	DefaultTrailTriggerPct     = 0.10 // gain that activates trailing
	DefaultBreakevenTriggerPct = 0.05 // gain that lifts the stop to entry
)

// Params holds the stop and target fractions. All values are fractions of
// the entry price, not percentages.
type Params struct {
	StopPct             float64
	TargetPct           float64
	TrailPct            float64
	TrailTriggerPct     float64
	BreakevenTriggerPct float64
}

// DefaultParams returns the standard momentum exit rules.
func DefaultParams() Params {
	return Params{
		StopPct:             DefaultStopPct,
		TargetPct:           DefaultTargetPct,
		TrailPct:            DefaultTrailPct,
		TrailTriggerPct:     DefaultTrailTriggerPct,
		BreakevenTriggerPct: DefaultBreakevenTriggerPct,
	}
}

// Validate checks that every fraction is inside its domain.
func (p Params) Validate() error {
	check := func(name string, v float64) error {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%w: %s %.4f outside (0, 1)", domain.ErrInvalidParameter, name, v)
		}
		return nil
	}
	if err := check("stop_pct", p.StopPct); err != nil {
		return err
	}
	if err := check("target_pct", p.TargetPct); err != nil {
		return err
	}
	if err := check("trail_pct", p.TrailPct); err != nil {
		return err
	}
	if err := check("trail_trigger_pct", p.TrailTriggerPct); err != nil {
		return err
	}
	return check("breakeven_trigger_pct", p.BreakevenTriggerPct)
}

// InitialStop returns the protective stop for a fresh entry,
// entry * (1 - stopPct).
func InitialStop(entry, stopPct float64) (float64, error) {
	if entry <= 0 {
		return 0, fmt.Errorf("%w: entry price %.4f", domain.ErrInvalidParameter, entry)
	}
	if stopPct <= 0 || stopPct >= 1 {
		return 0, fmt.Errorf("%w: stop_pct %.4f outside (0, 1)", domain.ErrInvalidParameter, stopPct)
	}
	return entry * (1 - stopPct), nil
}

// Target returns the profit target for a fresh entry,
// entry * (1 + targetPct).
func Target(entry, targetPct float64) (float64, error) {
	if entry <= 0 {
		return 0, fmt.Errorf("%w: entry price %.4f", domain.ErrInvalidParameter, entry)
	}
	if targetPct <= 0 {
		return 0, fmt.Errorf("%w: target_pct %.4f not positive", domain.ErrInvalidParameter, targetPct)
	}
	return entry * (1 + targetPct), nil
}

// Trail computes the stop for an open position after a new price
// observation. The running high ratchets first, then the candidate stop is
// picked from the gain off entry: past the trail trigger the stop sits
// TrailPct under the high, past the breakeven trigger it sits at entry,
// otherwise it stays put. The returned stop never decreases.
func Trail(entry, price, currentStop, currentHighest float64, p Params) (newStop, newHighest float64) {
	newHighest = currentHighest
	if price > newHighest {
		newHighest = price
	}

	gain := (price - entry) / entry

	candidate := currentStop
	switch {
	case gain >= p.TrailTriggerPct:
		candidate = newHighest * (1 - p.TrailPct)
	case gain >= p.BreakevenTriggerPct:
		candidate = entry
	}

	newStop = currentStop
	if candidate > newStop {
		newStop = candidate
	}
	return newStop, newHighest
}

// ExitSignal is the outcome of checking a price against stop and target.
type ExitSignal int

const (
	ExitNone ExitSignal = iota
	ExitStop
	ExitTarget
)

// String returns the signal name.
func (s ExitSignal) String() string {
	switch s {
	case ExitStop:
		return "STOP_HIT"
	case ExitTarget:
		return "TARGET_HIT"
	default:
		return "NONE"
	}
}

// Reason maps the signal to the exit reason recorded on the position.
func (s ExitSignal) Reason() domain.ExitReason {
	switch s {
	case ExitStop:
		return domain.ExitReasonStop
	case ExitTarget:
		return domain.ExitReasonTarget
	default:
		return ""
	}
}

// EvaluateExit checks a price against the stop and target levels. The stop
// is checked first, so a price at or below the stop exits as a stop even
// when it also clears the target.
func EvaluateExit(price, stop, target float64) ExitSignal {
	if price <= stop {
		return ExitStop
	}
	if price >= target {
		return ExitTarget
	}
	return ExitNone
}

// ClassifyStop labels the stop regime relative to the entry and the initial
// stop.
func ClassifyStop(entry, initialStop, stop float64) domain.StopType {
	if stop > initialStop && stop >= entry {
		if stop > entry {
			return domain.StopTypeTrailing
		}
		return domain.StopTypeBreakeven
	}
	return domain.StopTypeFixed
}
