package screener

import (
	"fmt"
	"strings"

	"stockradar/internal/domain"
)

// BaseStage labels how far along a contraction base is.
type BaseStage string

const (
	BaseForming BaseStage = "FORMING"
	BaseReady   BaseStage = "READY"
	BaseFailed  BaseStage = "FAILED"
)

const (
	defaultExtremeWindow     = 5
	defaultMinContractionPct = 5.0
	defaultMinContractions   = 2
	defaultMaxContractions   = 5
	defaultMaxBaseDepthPct   = 35.0
	defaultMinBaseBars       = 15
	defaultMaxBaseBars       = 50
	defaultDryUpThreshold    = 0.7
	defaultDryUpBars         = 10
	defaultPivotBars         = 20

	// A valid base this close to its pivot is ready to break out.
	readyDepthPct = 3.0
)

// BaseConfig tunes contraction-base detection. Zero fields fall back to the
// package defaults.
type BaseConfig struct {
	ExtremeWindow     int
	MinContractionPct float64
	MinContractions   int
	MaxContractions   int
	MaxBaseDepthPct   float64
	MinBaseBars       int
	MaxBaseBars       int
	DryUpThreshold    float64
	DryUpBars         int
	PivotBars         int
}

// DefaultBaseConfig returns the standard detection parameters: pullbacks
// deeper than 5% within a 3 to 10 week base no deeper than 35%, volume in
// the last 10 sessions below 70% of the base average, pivot from the last
// 20 highs.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		ExtremeWindow:     defaultExtremeWindow,
		MinContractionPct: defaultMinContractionPct,
		MinContractions:   defaultMinContractions,
		MaxContractions:   defaultMaxContractions,
		MaxBaseDepthPct:   defaultMaxBaseDepthPct,
		MinBaseBars:       defaultMinBaseBars,
		MaxBaseBars:       defaultMaxBaseBars,
		DryUpThreshold:    defaultDryUpThreshold,
		DryUpBars:         defaultDryUpBars,
		PivotBars:         defaultPivotBars,
	}
}

func (c BaseConfig) normalized() BaseConfig {
	d := DefaultBaseConfig()
	if c.ExtremeWindow <= 0 {
		c.ExtremeWindow = d.ExtremeWindow
	}
	if c.MinContractionPct <= 0 {
		c.MinContractionPct = d.MinContractionPct
	}
	if c.MinContractions <= 0 {
		c.MinContractions = d.MinContractions
	}
	if c.MaxContractions <= 0 {
		c.MaxContractions = d.MaxContractions
	}
	if c.MaxBaseDepthPct <= 0 {
		c.MaxBaseDepthPct = d.MaxBaseDepthPct
	}
	if c.MinBaseBars <= 0 {
		c.MinBaseBars = d.MinBaseBars
	}
	if c.MaxBaseBars <= 0 {
		c.MaxBaseBars = d.MaxBaseBars
	}
	if c.DryUpThreshold <= 0 {
		c.DryUpThreshold = d.DryUpThreshold
	}
	if c.DryUpBars <= 0 {
		c.DryUpBars = d.DryUpBars
	}
	if c.PivotBars <= 0 {
		c.PivotBars = d.PivotBars
	}
	return c
}

// BaseResult describes the contraction base found in a ticker's recent bars.
type BaseResult struct {
	Ticker string
	Valid  bool
	Stage  BaseStage
	Score  int

	Contractions []float64 // pullback depths in percent, oldest first
	Tightening   bool
	Pivot        float64
	DepthPct     float64 // last close's distance below the pivot, percent
	MaxDepthPct  float64
	BaseBars     int
	VolumeDryUp  float64 // recent volume over base average, lower is better
	Notes        string
}

// AnalyzeBase inspects a ticker's recent bars for a sequence of tightening
// pullbacks on shrinking volume. The pivot is the highest high of the final
// PivotBars sessions; a valid base whose last close sits within
// readyDepthPct of the pivot is READY to break out.
func AnalyzeBase(ticker string, bars []domain.Bar, cfg BaseConfig) (BaseResult, error) {
	cfg = cfg.normalized()
	minBars := cfg.PivotBars
	if w := 2*cfg.ExtremeWindow + 1; w > minBars {
		minBars = w
	}
	if len(bars) < minBars {
		return BaseResult{}, fmt.Errorf("screener: base %s: %d bars: %w", ticker, len(bars), ErrInsufficientHistory)
	}

	hi := highSeries(bars)
	lo := lowSeries(bars)
	highIdx := localExtremes(hi, cfg.ExtremeWindow, true)
	lowIdx := localExtremes(lo, cfg.ExtremeWindow, false)
	depths := contractionDepths(hi, lo, highIdx, lowIdx, cfg.MinContractionPct)
	tight := depthsTightening(depths)

	baseStart := 0
	if len(highIdx) > 0 {
		baseStart = highIdx[0]
	}
	baseBars := len(bars) - baseStart

	pivot := maxOf(hi[len(hi)-cfg.PivotBars:])

	avgVol := avgVolume(bars, 0)
	dryUp := 1.0
	if avgVol > 0 {
		dryUp = avgVolume(bars, cfg.DryUpBars) / avgVol
	}

	maxDepth := 100.0
	if baseHigh := maxOf(hi[baseStart:]); baseHigh > 0 {
		maxDepth = (baseHigh - minOf(lo[baseStart:])) / baseHigh * 100
	}

	depth := 0.0
	if price := bars[len(bars)-1].Close; pivot > 0 {
		depth = (pivot - price) / pivot * 100
	}

	res := BaseResult{
		Ticker:       ticker,
		Contractions: depths,
		Tightening:   tight,
		Pivot:        pivot,
		DepthPct:     depth,
		MaxDepthPct:  maxDepth,
		BaseBars:     baseBars,
		VolumeDryUp:  dryUp,
	}

	res.Valid = len(depths) >= cfg.MinContractions && len(depths) <= cfg.MaxContractions &&
		tight &&
		dryUp < cfg.DryUpThreshold &&
		maxDepth <= cfg.MaxBaseDepthPct &&
		baseBars >= cfg.MinBaseBars && baseBars <= cfg.MaxBaseBars

	switch {
	case !res.Valid:
		res.Stage = BaseFailed
	case depth < readyDepthPct:
		res.Stage = BaseReady
	default:
		res.Stage = BaseForming
	}
	res.Score = baseScore(depths, dryUp, tight, depth)
	res.Notes = baseNotes(res, cfg)
	return res, nil
}

// localExtremes returns the indices whose value matches the extreme of a
// window extending `window` bars to each side.
func localExtremes(vals []float64, window int, findMax bool) []int {
	var idx []int
	for i := window; i < len(vals)-window; i++ {
		ext := vals[i-window]
		for _, v := range vals[i-window : i+window+1] {
			if findMax && v > ext || !findMax && v < ext {
				ext = v
			}
		}
		if vals[i] == ext {
			idx = append(idx, i)
		}
	}
	return idx
}

// contractionDepths pairs each local high with the first local low after it
// and keeps pullbacks deeper than minPct.
func contractionDepths(hi, lo []float64, highIdx, lowIdx []int, minPct float64) []float64 {
	var depths []float64
	for _, h := range highIdx {
		next := -1
		for _, l := range lowIdx {
			if l > h {
				next = l
				break
			}
		}
		if next < 0 || hi[h] <= 0 {
			continue
		}
		if depth := (hi[h] - lo[next]) / hi[h] * 100; depth > minPct {
			depths = append(depths, depth)
		}
	}
	return depths
}

// depthsTightening reports whether successive pullbacks are mostly getting
// shallower: at least 60% of adjacent pairs must shrink.
func depthsTightening(depths []float64) bool {
	if len(depths) < 2 {
		return false
	}
	dec := 0
	for i := 1; i < len(depths); i++ {
		if depths[i] < depths[i-1] {
			dec++
		}
	}
	return float64(dec) >= float64(len(depths))*0.6-0.5
}

// baseScore rates a base 0-100, a quarter each for contraction count,
// tightening, volume dry-up and proximity to the pivot.
func baseScore(depths []float64, dryUp float64, tight bool, depthPct float64) int {
	score := 0
	switch n := len(depths); {
	case n >= 2 && n <= 3:
		score += 25
	case n == 4:
		score += 20
	case n == 5:
		score += 15
	case n == 1:
		score += 5
	}
	if tight {
		score += 25
	}
	switch {
	case dryUp < 0.4:
		score += 25
	case dryUp < 0.5:
		score += 20
	case dryUp < 0.6:
		score += 15
	case dryUp < 0.8:
		score += 10
	}
	switch {
	case depthPct < 3:
		score += 25
	case depthPct < 5:
		score += 20
	case depthPct < 10:
		score += 15
	case depthPct < 15:
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func baseNotes(res BaseResult, cfg BaseConfig) string {
	if res.Valid {
		last := res.Contractions[len(res.Contractions)-1]
		return fmt.Sprintf("%d contractions tightening to %.1f%%, volume dry-up %.2f",
			len(res.Contractions), last, res.VolumeDryUp)
	}
	var issues []string
	if len(res.Contractions) < cfg.MinContractions {
		issues = append(issues, fmt.Sprintf("only %d contractions", len(res.Contractions)))
	}
	if len(res.Contractions) > cfg.MaxContractions {
		issues = append(issues, fmt.Sprintf("%d contractions is too many", len(res.Contractions)))
	}
	if !res.Tightening {
		issues = append(issues, "not tightening")
	}
	if res.VolumeDryUp >= cfg.DryUpThreshold {
		issues = append(issues, "volume not drying up")
	}
	if res.MaxDepthPct > cfg.MaxBaseDepthPct {
		issues = append(issues, fmt.Sprintf("base %.0f%% deep", res.MaxDepthPct))
	}
	if res.BaseBars < cfg.MinBaseBars {
		issues = append(issues, fmt.Sprintf("base only %d bars", res.BaseBars))
	}
	if res.BaseBars > cfg.MaxBaseBars {
		issues = append(issues, fmt.Sprintf("base %d bars is too long", res.BaseBars))
	}
	return "invalid base: " + strings.Join(issues, ", ")
}
