package domain

import "time"

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// BreakoutQuality grades a breakout candidate. A and B are tradeable.
type BreakoutQuality string

const (
	QualityA BreakoutQuality = "A"
	QualityB BreakoutQuality = "B"
	QualityC BreakoutQuality = "C"
	QualityF BreakoutQuality = "F"
)

// Tradeable reports whether the grade clears the entry bar.
func (q BreakoutQuality) Tradeable() bool {
	return q == QualityA || q == QualityB
}

// Candidate is a confirmed breakout emitted by the screener for the trader
// to act on.
type Candidate struct {
	ID          string
	Ticker      string
	Pivot       float64
	Price       float64
	BreakoutPct float64
	VolumeRatio float64
	Quality     BreakoutQuality
	Score       int // contraction base score, 0-100
	Entry       float64
	Stop        float64
	Target      float64
	RewardRisk  float64
	Extended    bool
	Notes       string
	DetectedAt  time.Time
}

// EarningsDate is the next known earnings report date for a ticker.
type EarningsDate struct {
	Ticker     string
	ReportDate time.Time
	FetchedAt  time.Time
}

// DaysUntil returns whole days from the given date to the report date,
// negative when the report is in the past.
func (e EarningsDate) DaysUntil(from time.Time) int {
	return int(e.ReportDate.Sub(from).Hours() / 24)
}
