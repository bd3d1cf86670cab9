package screener

import (
	"errors"
	"strings"
	"testing"
)

// vcpCloses builds 90 bars: a strict run-up to 100, then two tightening
// pullbacks (12% and 7%) with the tail climbing back to 99.5.
func vcpCloses() []float64 {
	var out []float64
	out = append(out, ramp(70, 100, 45)...)          // 0..44, peak 100
	out = append(out, ramp(100, 88, 11)[1:]...)      // 45..54, low 88
	out = append(out, ramp(88, 99, 11)[1:]...)       // 55..64, high 99
	out = append(out, ramp(99, 92.07, 9)[1:]...)     // 65..72, low 92.07
	out = append(out, ramp(92.07, 99.5, 18)[1:]...)  // 73..89, back to 99.5
	return out
}

func decliningVols(n int, start, step int64) []int64 {
	vols := make([]int64, n)
	for i := range vols {
		vols[i] = start - step*int64(i)
	}
	return vols
}

func TestAnalyzeBaseReady(t *testing.T) {
	closes := vcpCloses()
	bars := mkBarsVol(closes, decliningVols(len(closes), 2_000_000, 15_000))

	res, err := AnalyzeBase("VCP", bars, BaseConfig{})
	if err != nil {
		t.Fatalf("AnalyzeBase: %v", err)
	}
	if !res.Valid {
		t.Fatalf("base should be valid, notes: %s", res.Notes)
	}
	if res.Stage != BaseReady {
		t.Errorf("Stage = %s, want %s (depth %.2f%%)", res.Stage, BaseReady, res.DepthPct)
	}
	if len(res.Contractions) != 2 {
		t.Fatalf("Contractions = %v, want two", res.Contractions)
	}
	if res.Contractions[1] >= res.Contractions[0] {
		t.Errorf("pullbacks not tightening: %v", res.Contractions)
	}
	if !res.Tightening {
		t.Error("Tightening = false")
	}
	if !almostEqual(res.Pivot, 99.5) {
		t.Errorf("Pivot = %.4f, want 99.5", res.Pivot)
	}
	if res.BaseBars != 46 {
		t.Errorf("BaseBars = %d, want 46", res.BaseBars)
	}
	// 25 for two contractions, 25 tightening, 15 for dry-up 0.55, 25 for
	// closing at the pivot.
	if res.Score != 90 {
		t.Errorf("Score = %d, want 90", res.Score)
	}
}

func TestAnalyzeBaseWideningFails(t *testing.T) {
	var closes []float64
	closes = append(closes, ramp(70, 100, 45)...)
	closes = append(closes, ramp(100, 93, 11)[1:]...)     // 7% pullback
	closes = append(closes, ramp(93, 99, 11)[1:]...)
	closes = append(closes, ramp(99, 87.12, 9)[1:]...)    // then 12%: widening
	closes = append(closes, ramp(87.12, 99.5, 18)[1:]...)
	bars := mkBarsVol(closes, decliningVols(len(closes), 2_000_000, 15_000))

	res, err := AnalyzeBase("WIDE", bars, BaseConfig{})
	if err != nil {
		t.Fatalf("AnalyzeBase: %v", err)
	}
	if res.Valid {
		t.Fatal("widening pullbacks should not form a valid base")
	}
	if res.Stage != BaseFailed {
		t.Errorf("Stage = %s, want %s", res.Stage, BaseFailed)
	}
	if !strings.Contains(res.Notes, "not tightening") {
		t.Errorf("Notes = %q, want mention of tightening", res.Notes)
	}
}

func TestAnalyzeBaseNoVolumeDryUp(t *testing.T) {
	closes := vcpCloses()
	bars := mkBars(closes, 1_000_000)

	res, err := AnalyzeBase("LOUD", bars, BaseConfig{})
	if err != nil {
		t.Fatalf("AnalyzeBase: %v", err)
	}
	if res.Valid {
		t.Fatal("flat volume should not form a valid base")
	}
	if !strings.Contains(res.Notes, "volume not drying up") {
		t.Errorf("Notes = %q, want mention of volume", res.Notes)
	}
}

func TestAnalyzeBaseInsufficientHistory(t *testing.T) {
	bars := mkBars(ramp(90, 100, 10), 1_000_000)

	if _, err := AnalyzeBase("NEW", bars, BaseConfig{}); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}
