package screener

import (
	"fmt"
	"strings"

	"stockradar/internal/domain"
	"stockradar/internal/policy"
)

const (
	defaultVolumeMultiplier = 1.5
	defaultAvgVolumeBars    = 20
	defaultMaxExtensionPct  = 5.0
)

// BreakoutConfig tunes breakout confirmation. Zero fields fall back to the
// package defaults; zero stop and target percentages fall back to the
// policy defaults.
type BreakoutConfig struct {
	VolumeMultiplier float64
	AvgVolumeBars    int
	MaxExtensionPct  float64
	StopPct          float64
	TargetPct        float64
}

func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		VolumeMultiplier: defaultVolumeMultiplier,
		AvgVolumeBars:    defaultAvgVolumeBars,
		MaxExtensionPct:  defaultMaxExtensionPct,
		StopPct:          policy.DefaultStopPct,
		TargetPct:        policy.DefaultTargetPct,
	}
}

func (c BreakoutConfig) normalized() BreakoutConfig {
	d := DefaultBreakoutConfig()
	if c.VolumeMultiplier <= 0 {
		c.VolumeMultiplier = d.VolumeMultiplier
	}
	if c.AvgVolumeBars <= 0 {
		c.AvgVolumeBars = d.AvgVolumeBars
	}
	if c.MaxExtensionPct <= 0 {
		c.MaxExtensionPct = d.MaxExtensionPct
	}
	if c.StopPct <= 0 {
		c.StopPct = d.StopPct
	}
	if c.TargetPct <= 0 {
		c.TargetPct = d.TargetPct
	}
	return c
}

// BreakoutResult describes the latest bar measured against a pivot.
type BreakoutResult struct {
	Ticker    string
	Confirmed bool

	Pivot       float64
	Price       float64
	BreakoutPct float64

	VolumeToday     int64
	AvgVolume       float64
	VolumeRatio     float64
	VolumeConfirmed bool

	Extended     bool
	NearEarnings bool
	Quality      domain.BreakoutQuality

	Entry      float64
	Stop       float64
	Target     float64
	RewardRisk float64

	Notes string
}

// ConfirmBreakout checks whether the latest bar cleared the pivot on
// expanded volume. A confirmed breakout closes above the pivot with volume
// at least VolumeMultiplier times the AvgVolumeBars average, sits no more
// than MaxExtensionPct above the pivot and is clear of earnings.
func ConfirmBreakout(ticker string, bars []domain.Bar, pivot float64, nearEarnings bool, cfg BreakoutConfig) (BreakoutResult, error) {
	cfg = cfg.normalized()
	if len(bars) < cfg.AvgVolumeBars {
		return BreakoutResult{}, fmt.Errorf("screener: breakout %s: %d bars: %w", ticker, len(bars), ErrInsufficientHistory)
	}
	if pivot <= 0 {
		return BreakoutResult{}, fmt.Errorf("screener: breakout %s: pivot %.2f: %w", ticker, pivot, domain.ErrInvalidParameter)
	}

	last := bars[len(bars)-1]
	price := last.Close

	res := BreakoutResult{
		Ticker:       ticker,
		Pivot:        pivot,
		Price:        price,
		BreakoutPct:  (price - pivot) / pivot * 100,
		VolumeToday:  last.Volume,
		AvgVolume:    avgVolume(bars, cfg.AvgVolumeBars),
		NearEarnings: nearEarnings,
	}
	if res.AvgVolume > 0 {
		res.VolumeRatio = float64(last.Volume) / res.AvgVolume
	}
	res.VolumeConfirmed = res.VolumeRatio >= cfg.VolumeMultiplier
	res.Extended = res.BreakoutPct > cfg.MaxExtensionPct

	abovePivot := price > pivot
	res.Confirmed = abovePivot && res.VolumeConfirmed && !res.Extended && !nearEarnings
	res.Quality = gradeBreakout(abovePivot, nearEarnings, res.BreakoutPct, res.VolumeRatio)

	stop, err := policy.InitialStop(price, cfg.StopPct)
	if err != nil {
		return BreakoutResult{}, fmt.Errorf("screener: breakout %s: %w", ticker, err)
	}
	target, err := policy.Target(price, cfg.TargetPct)
	if err != nil {
		return BreakoutResult{}, fmt.Errorf("screener: breakout %s: %w", ticker, err)
	}
	res.Entry = price
	res.Stop = stop
	res.Target = target
	if price > stop {
		res.RewardRisk = (target - price) / (price - stop)
	}
	res.Notes = breakoutNotes(res, abovePivot)
	return res, nil
}

// gradeBreakout scores volume expansion and pivot extension into A/B/C/F.
// Anything below the pivot or near earnings fails outright.
func gradeBreakout(abovePivot, nearEarnings bool, breakoutPct, volumeRatio float64) domain.BreakoutQuality {
	if !abovePivot || nearEarnings {
		return domain.QualityF
	}

	points := 0
	switch {
	case volumeRatio >= 2.0:
		points += 3
	case volumeRatio >= 1.5:
		points += 2
	case volumeRatio >= 1.0:
		points += 1
	}
	switch {
	case breakoutPct < 2:
		points += 3
	case breakoutPct < 5:
		points += 2
	case breakoutPct < 8:
		points += 1
	}

	switch {
	case points >= 5:
		return domain.QualityA
	case points >= 3:
		return domain.QualityB
	case points >= 1:
		return domain.QualityC
	default:
		return domain.QualityF
	}
}

func breakoutNotes(res BreakoutResult, abovePivot bool) string {
	if res.Confirmed {
		return fmt.Sprintf("breakout %+.1f%% on %.1fx volume", res.BreakoutPct, res.VolumeRatio)
	}
	var issues []string
	if !abovePivot {
		issues = append(issues, "below pivot")
	}
	if !res.VolumeConfirmed {
		issues = append(issues, "weak volume")
	}
	if res.Extended {
		issues = append(issues, fmt.Sprintf("extended %+.1f%%", res.BreakoutPct))
	}
	if res.NearEarnings {
		issues = append(issues, "near earnings")
	}
	return "no breakout: " + strings.Join(issues, ", ")
}
