package domain

import "time"

// TradingDate truncates a timestamp to its UTC calendar date.
func TradingDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Snapshot is the end-of-day portfolio record for one trading date.
// Snapshots are append-only: one per date, never rewritten.
type Snapshot struct {
	Date           time.Time
	Cash           float64
	PositionsValue float64
	TotalEquity    float64
	DailyPnL       float64
	DailyPnLPct    float64
	TotalReturnPct float64
	PeakValue      float64
	MaxDrawdownPct float64
	OpenPositions  int
	BenchmarkClose *float64
	CreatedAt      time.Time
}

// PortfolioStatus is a point-in-time valuation, not persisted.
type PortfolioStatus struct {
	AsOf            time.Time
	Cash            float64
	PositionsValue  float64
	TotalEquity     float64
	TotalReturnPct  float64
	OpenPositions   int
	StartingCapital float64
}

// CashBalance is the ledger's cash account.
type CashBalance struct {
	Cash            float64
	StartingCapital float64
}
