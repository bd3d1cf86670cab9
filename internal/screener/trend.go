package screener

import (
	"fmt"

	"stockradar/internal/domain"
)

const (
	trendMinBars   = 200
	trendSlopeBars = 30
	yearBars       = 252
)

// TrendResult holds the outcome of the eight stage-two trend checks for a
// single ticker.
type TrendResult struct {
	Ticker string
	Price  float64

	MA50  float64
	MA150 float64
	MA200 float64

	High52w float64
	Low52w  float64

	PriceAboveMA50  bool
	PriceAboveMA150 bool
	PriceAboveMA200 bool
	MA50AboveMA150  bool
	MA150AboveMA200 bool
	MA200Rising     bool
	NearHigh        bool
	ClearOfLow      bool

	Passed int
	Passes bool

	DistFromHighPct float64
	DistFromLowPct  float64
}

// AssessTrend measures a ticker's daily bars against the eight stage-two
// trend criteria: price above the 50, 150 and 200 day moving averages, the
// averages stacked in that order, a 200-day average that has risen over the
// last thirty sessions, price within 25% of its 52-week high and at least
// 30% above its 52-week low. All eight must hold for Passes.
func AssessTrend(ticker string, bars []domain.Bar) (TrendResult, error) {
	if len(bars) < trendMinBars {
		return TrendResult{}, fmt.Errorf("screener: trend %s: %d bars: %w", ticker, len(bars), ErrInsufficientHistory)
	}

	cls := closes(bars)
	price := cls[len(cls)-1]

	res := TrendResult{
		Ticker: ticker,
		Price:  price,
		MA50:   smaEnding(cls, 50, len(cls)),
		MA150:  smaEnding(cls, 150, len(cls)),
		MA200:  smaEnding(cls, 200, len(cls)),
	}

	// Slope is judged against the 200-day average as it stood thirty
	// sessions back. Shorter histories cannot show a rise.
	priorMA200 := res.MA200
	if len(cls) >= trendMinBars+trendSlopeBars {
		priorMA200 = smaEnding(cls, 200, len(cls)-trendSlopeBars)
	}

	look := yearBars
	if len(bars) < look {
		look = len(bars)
	}
	res.High52w = maxOf(highSeries(bars[len(bars)-look:]))
	res.Low52w = minOf(lowSeries(bars[len(bars)-look:]))

	res.PriceAboveMA50 = price > res.MA50
	res.PriceAboveMA150 = price > res.MA150
	res.PriceAboveMA200 = price > res.MA200
	res.MA50AboveMA150 = res.MA50 > res.MA150
	res.MA150AboveMA200 = res.MA150 > res.MA200
	res.MA200Rising = res.MA200 > priorMA200
	res.NearHigh = price >= res.High52w*0.75
	res.ClearOfLow = price >= res.Low52w*1.30

	for _, ok := range []bool{
		res.PriceAboveMA50, res.PriceAboveMA150, res.PriceAboveMA200,
		res.MA50AboveMA150, res.MA150AboveMA200, res.MA200Rising,
		res.NearHigh, res.ClearOfLow,
	} {
		if ok {
			res.Passed++
		}
	}
	res.Passes = res.Passed == 8

	if res.High52w > 0 {
		res.DistFromHighPct = (res.High52w - price) / res.High52w * 100
	}
	if res.Low52w > 0 {
		res.DistFromLowPct = (price - res.Low52w) / res.Low52w * 100
	}
	return res, nil
}
