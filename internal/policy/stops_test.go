package policy

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"stockradar/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInitialStop(t *testing.T) {
	got, err := InitialStop(100, 0.07)
	if err != nil {
		t.Fatalf("InitialStop: %v", err)
	}
	if !almostEqual(got, 93) {
		t.Fatalf("InitialStop(100, 0.07) = %v, want 93", got)
	}

	for _, pct := range []float64{0, 1, -0.1, 1.5} {
		if _, err := InitialStop(100, pct); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Fatalf("InitialStop(100, %v) err = %v, want ErrInvalidParameter", pct, err)
		}
	}
	if _, err := InitialStop(0, 0.07); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("InitialStop(0, 0.07) err = %v, want ErrInvalidParameter", err)
	}
}

func TestTarget(t *testing.T) {
	got, err := Target(50, 0.20)
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if !almostEqual(got, 60) {
		t.Fatalf("Target(50, 0.20) = %v, want 60", got)
	}
	if _, err := Target(50, 0); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("Target(50, 0) err = %v, want ErrInvalidParameter", err)
	}
}

// TestTrailWalk walks a position through the breakeven and trailing regimes
// and checks each stop along the way.
func TestTrailWalk(t *testing.T) {
	p := DefaultParams()
	entry := 100.0
	stop := 93.0
	highest := entry

	steps := []struct {
		price       float64
		wantStop    float64
		wantHighest float64
	}{
		{106, 100, 106},      // +6%: breakeven
		{101, 100, 106},      // +1%: holds, no decrease
		{112, 100.80, 112},   // +12%: trails 10% under the high
		{108, 100.80, 112},   // pullback: high and stop hold
		{120, 108, 120},      // new high: stop follows
		{110, 108, 120},      // +10%: candidate 108 equals stop, holds
	}

	for i, st := range steps {
		var newHigh float64
		stop, newHigh = Trail(entry, st.price, stop, highest, p)
		if !almostEqual(stop, st.wantStop) {
			t.Fatalf("step %d price %.2f: stop = %v, want %v", i, st.price, stop, st.wantStop)
		}
		if !almostEqual(newHigh, st.wantHighest) {
			t.Fatalf("step %d price %.2f: highest = %v, want %v", i, st.price, newHigh, st.wantHighest)
		}
		highest = newHigh
	}
}

func TestTrailBelowTriggersHolds(t *testing.T) {
	p := DefaultParams()
	stop, highest := Trail(100, 104.9, 93, 100, p)
	if !almostEqual(stop, 93) {
		t.Fatalf("stop = %v, want unchanged 93", stop)
	}
	if !almostEqual(highest, 104.9) {
		t.Fatalf("highest = %v, want 104.9", highest)
	}

	// Losing price never moves anything down.
	stop, highest = Trail(100, 80, 93, 104.9, p)
	if !almostEqual(stop, 93) || !almostEqual(highest, 104.9) {
		t.Fatalf("losing tick moved stop/highest: %v %v", stop, highest)
	}
}

// TestTrailMonotonic feeds a random walk through Trail and asserts the stop
// series never decreases and the high never drops below entry.
func TestTrailMonotonic(t *testing.T) {
	p := DefaultParams()
	rng := rand.New(rand.NewSource(42))

	entry := 50.0
	stop := entry * (1 - p.StopPct)
	highest := entry
	price := entry

	for i := 0; i < 5000; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.08
		if price < 1 {
			price = 1
		}
		prevStop, prevHigh := stop, highest
		stop, highest = Trail(entry, price, stop, highest, p)
		if stop < prevStop {
			t.Fatalf("tick %d: stop decreased %v -> %v", i, prevStop, stop)
		}
		if highest < prevHigh {
			t.Fatalf("tick %d: highest decreased %v -> %v", i, prevHigh, highest)
		}
		if highest < entry {
			t.Fatalf("tick %d: highest %v below entry", i, highest)
		}
	}
}

func TestEvaluateExit(t *testing.T) {
	tests := []struct {
		name                string
		price, stop, target float64
		want                ExitSignal
	}{
		{"above stop below target", 100, 93, 120, ExitNone},
		{"at stop", 93, 93, 120, ExitStop},
		{"below stop", 92.99, 93, 120, ExitStop},
		{"at target", 120, 93, 120, ExitTarget},
		{"above target", 125, 93, 120, ExitTarget},
		{"stop wins tie", 100, 100, 100, ExitStop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateExit(tt.price, tt.stop, tt.target); got != tt.want {
				t.Fatalf("EvaluateExit(%v, %v, %v) = %v, want %v", tt.price, tt.stop, tt.target, got, tt.want)
			}
		})
	}
}

func TestClassifyStop(t *testing.T) {
	tests := []struct {
		name                string
		entry, initial, cur float64
		want                domain.StopType
	}{
		{"untouched initial", 100, 93, 93, domain.StopTypeFixed},
		{"raised but under entry", 100, 93, 97, domain.StopTypeFixed},
		{"at entry", 100, 93, 100, domain.StopTypeBreakeven},
		{"above entry", 100, 93, 104, domain.StopTypeTrailing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStop(tt.entry, tt.initial, tt.cur); got != tt.want {
				t.Fatalf("ClassifyStop(%v, %v, %v) = %v, want %v", tt.entry, tt.initial, tt.cur, got, tt.want)
			}
		})
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	bad := DefaultParams()
	bad.TrailPct = 1.2
	if err := bad.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("Validate err = %v, want ErrInvalidParameter", err)
	}
}
