package policy

import (
	"errors"
	"testing"

	"stockradar/internal/domain"
)

func TestShareCountCapBinds(t *testing.T) {
	// Risk leg allows 285 shares, concentration leg caps at 200.
	res, err := ShareCount(50000, 50, 46.50, 0.02, 0.20)
	if err != nil {
		t.Fatalf("ShareCount: %v", err)
	}
	if res.Shares != 200 {
		t.Fatalf("Shares = %d, want 200", res.Shares)
	}
	if res.RiskShares != 285 {
		t.Fatalf("RiskShares = %d, want 285", res.RiskShares)
	}
	if res.CapShares != 200 {
		t.Fatalf("CapShares = %d, want 200", res.CapShares)
	}
	if !almostEqual(res.RiskPerShare, 3.5) {
		t.Fatalf("RiskPerShare = %v, want 3.5", res.RiskPerShare)
	}
	if !almostEqual(res.Cost, 10000) {
		t.Fatalf("Cost = %v, want 10000", res.Cost)
	}
}

func TestShareCountRiskBinds(t *testing.T) {
	// Wide stop: risk leg is the binding constraint.
	res, err := ShareCount(100000, 100, 80, 0.02, 0.20)
	if err != nil {
		t.Fatalf("ShareCount: %v", err)
	}
	// risk: floor(2000/20) = 100; cap: floor(20000/100) = 200
	if res.Shares != 100 {
		t.Fatalf("Shares = %d, want 100", res.Shares)
	}
	if !almostEqual(res.RiskDollars, 2000) {
		t.Fatalf("RiskDollars = %v, want 2000", res.RiskDollars)
	}
}

func TestShareCountStopAboveEntry(t *testing.T) {
	for _, stop := range []float64{100, 105} {
		_, err := ShareCount(50000, 100, stop, 0.02, 0.20)
		if !errors.Is(err, domain.ErrStopAboveEntry) {
			t.Fatalf("stop %v: err = %v, want ErrStopAboveEntry", stop, err)
		}
	}
}

func TestShareCountZeroShares(t *testing.T) {
	// Tiny portfolio against an expensive name rounds to zero.
	_, err := ShareCount(1000, 900, 850, 0.02, 0.20)
	if !errors.Is(err, domain.ErrZeroShares) {
		t.Fatalf("err = %v, want ErrZeroShares", err)
	}
}

func TestShareCountBadInputs(t *testing.T) {
	cases := []struct {
		name               string
		pv, entry          float64
		riskFrac, capFrac  float64
	}{
		{"zero portfolio", 0, 50, 0.02, 0.20},
		{"negative portfolio", -1, 50, 0.02, 0.20},
		{"zero entry", 50000, 0, 0.02, 0.20},
		{"risk frac zero", 50000, 50, 0, 0.20},
		{"risk frac one", 50000, 50, 1, 0.20},
		{"cap frac zero", 50000, 50, 0.02, 0},
		{"cap frac above one", 50000, 50, 0.02, 1.01},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ShareCount(tt.pv, tt.entry, tt.entry-3, tt.riskFrac, tt.capFrac)
			if !errors.Is(err, domain.ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}
