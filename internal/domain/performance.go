package domain

// PerformanceReport aggregates closed-trade statistics.
type PerformanceReport struct {
	TotalTrades     int
	Winners         int
	Losers          int
	WinRatePct      float64
	AvgWinPct       float64
	AvgLossPct      float64
	ProfitFactor    float64 // gross wins / gross losses; +Inf when no losses
	AvgRMultiple    float64
	BestTradePct    float64
	WorstTradePct   float64
	TotalReturnPct  float64 // portfolio return vs starting capital
	RealizedDollars float64
}
