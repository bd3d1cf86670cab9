package screener

import (
	"errors"
	"strings"
	"testing"

	"stockradar/internal/domain"
)

// breakoutBars builds 30 quiet bars at 98 on baseVol, with the last bar
// closing at todayClose on todayVol.
func breakoutBars(todayClose float64, baseVol, todayVol int64) []domain.Bar {
	closes := make([]float64, 30)
	vols := make([]int64, 30)
	for i := range closes {
		closes[i] = 98
		vols[i] = baseVol
	}
	closes[29] = todayClose
	vols[29] = todayVol
	return mkBarsVol(closes, vols)
}

func TestConfirmBreakoutGradeA(t *testing.T) {
	bars := breakoutBars(101.5, 1_000_000, 2_500_000)

	res, err := ConfirmBreakout("BRK", bars, 100, false, BreakoutConfig{})
	if err != nil {
		t.Fatalf("ConfirmBreakout: %v", err)
	}
	if !res.Confirmed {
		t.Fatalf("breakout not confirmed: %s", res.Notes)
	}
	if res.Quality != domain.QualityA {
		t.Errorf("Quality = %s, want A", res.Quality)
	}
	if res.Extended {
		t.Error("close 1.5% above pivot reported as extended")
	}
	if !res.VolumeConfirmed {
		t.Errorf("volume ratio %.2f not confirmed", res.VolumeRatio)
	}
	if !almostEqual(res.Entry, 101.5) {
		t.Errorf("Entry = %.4f, want 101.5", res.Entry)
	}
	if !almostEqual(res.Stop, 101.5*0.93) {
		t.Errorf("Stop = %.4f, want %.4f", res.Stop, 101.5*0.93)
	}
	if !almostEqual(res.Target, 101.5*1.20) {
		t.Errorf("Target = %.4f, want %.4f", res.Target, 101.5*1.20)
	}
	if !res.Quality.Tradeable() {
		t.Error("grade A should be tradeable")
	}
}

func TestConfirmBreakoutExtended(t *testing.T) {
	bars := breakoutBars(107, 1_000_000, 2_500_000)

	res, err := ConfirmBreakout("EXT", bars, 100, false, BreakoutConfig{})
	if err != nil {
		t.Fatalf("ConfirmBreakout: %v", err)
	}
	if res.Confirmed {
		t.Error("close 7% above pivot should not confirm")
	}
	if !res.Extended {
		t.Error("Extended = false, want true")
	}
	if res.Quality != domain.QualityB {
		t.Errorf("Quality = %s, want B", res.Quality)
	}
	if !strings.Contains(res.Notes, "extended") {
		t.Errorf("Notes = %q, want mention of extension", res.Notes)
	}
}

func TestConfirmBreakoutWeakVolume(t *testing.T) {
	bars := breakoutBars(101.5, 1_000_000, 1_200_000)

	res, err := ConfirmBreakout("THIN", bars, 100, false, BreakoutConfig{})
	if err != nil {
		t.Fatalf("ConfirmBreakout: %v", err)
	}
	if res.Confirmed {
		t.Error("weak volume should not confirm")
	}
	if res.VolumeConfirmed {
		t.Errorf("volume ratio %.2f reported confirmed", res.VolumeRatio)
	}
	if res.Quality != domain.QualityB {
		t.Errorf("Quality = %s, want B", res.Quality)
	}
}

func TestConfirmBreakoutBelowPivot(t *testing.T) {
	bars := breakoutBars(99, 1_000_000, 2_500_000)

	res, err := ConfirmBreakout("FLAT", bars, 100, false, BreakoutConfig{})
	if err != nil {
		t.Fatalf("ConfirmBreakout: %v", err)
	}
	if res.Confirmed {
		t.Error("close below pivot should not confirm")
	}
	if res.Quality != domain.QualityF {
		t.Errorf("Quality = %s, want F", res.Quality)
	}
	if !strings.Contains(res.Notes, "below pivot") {
		t.Errorf("Notes = %q, want mention of pivot", res.Notes)
	}
}

func TestConfirmBreakoutNearEarnings(t *testing.T) {
	bars := breakoutBars(101.5, 1_000_000, 2_500_000)

	res, err := ConfirmBreakout("ERN", bars, 100, true, BreakoutConfig{})
	if err != nil {
		t.Fatalf("ConfirmBreakout: %v", err)
	}
	if res.Confirmed {
		t.Error("near earnings should not confirm")
	}
	if res.Quality != domain.QualityF {
		t.Errorf("Quality = %s, want F", res.Quality)
	}
}

func TestConfirmBreakoutBadInput(t *testing.T) {
	if _, err := ConfirmBreakout("NEW", breakoutBars(101.5, 1_000_000, 2_500_000)[:10], 100, false, BreakoutConfig{}); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("short history err = %v, want ErrInsufficientHistory", err)
	}
	if _, err := ConfirmBreakout("BAD", breakoutBars(101.5, 1_000_000, 2_500_000), 0, false, BreakoutConfig{}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("zero pivot err = %v, want ErrInvalidParameter", err)
	}
}
