package handler

import (
	"math"
	"time"

	"stockradar/internal/domain"
)

// Wire representations of the domain types. Dates render as YYYY-MM-DD,
// timestamps as RFC 3339.

type positionJSON struct {
	ID           string  `json:"id"`
	Ticker       string  `json:"ticker"`
	Status       string  `json:"status"`
	EntryDate    string  `json:"entry_date"`
	EntryPrice   float64 `json:"entry_price"`
	Shares       int     `json:"shares"`
	InitialStop  float64 `json:"initial_stop"`
	StopPrice    float64 `json:"stop_price"`
	StopType     string  `json:"stop_type"`
	TargetPrice  float64 `json:"target_price"`
	HighestPrice float64 `json:"highest_price"`
	RiskPerShare float64 `json:"risk_per_share"`
	RiskDollars  float64 `json:"risk_dollars"`
	RewardRisk   float64 `json:"reward_risk"`
	SignalSource string  `json:"signal_source,omitempty"`
	Notes        string  `json:"notes,omitempty"`

	ExitDate      *string  `json:"exit_date,omitempty"`
	ExitPrice     *float64 `json:"exit_price,omitempty"`
	ExitReason    string   `json:"exit_reason,omitempty"`
	ReturnPct     *float64 `json:"return_pct,omitempty"`
	ReturnDollars *float64 `json:"return_dollars,omitempty"`
	RMultiple     *float64 `json:"r_multiple,omitempty"`
	DaysHeld      *int     `json:"days_held,omitempty"`

	OpenedAt  time.Time `json:"opened_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPositionJSON(p domain.Position) positionJSON {
	out := positionJSON{
		ID:           p.ID,
		Ticker:       p.Ticker,
		Status:       string(p.Status),
		EntryDate:    p.EntryDate.Format(time.DateOnly),
		EntryPrice:   p.EntryPrice,
		Shares:       p.Shares,
		InitialStop:  p.InitialStop,
		StopPrice:    p.StopPrice,
		StopType:     string(p.StopType),
		TargetPrice:  p.TargetPrice,
		HighestPrice: p.HighestPrice,
		RiskPerShare: p.RiskPerShare,
		RiskDollars:  p.RiskDollars,
		RewardRisk:   p.RewardRisk,
		SignalSource: p.SignalSource,
		Notes:        p.Notes,
		ExitReason:   string(p.ExitReason),
		ExitPrice:    p.ExitPrice,
		ReturnPct:    p.ReturnPct,
		ReturnDollars: p.ReturnDollars,
		RMultiple:    p.RMultiple,
		DaysHeld:     p.DaysHeld,
		OpenedAt:     p.OpenedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.ExitDate != nil {
		d := p.ExitDate.Format(time.DateOnly)
		out.ExitDate = &d
	}
	return out
}

func toPositionsJSON(positions []domain.Position) []positionJSON {
	out := make([]positionJSON, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionJSON(p))
	}
	return out
}

type statusJSON struct {
	AsOf            time.Time `json:"as_of"`
	Cash            float64   `json:"cash"`
	PositionsValue  float64   `json:"positions_value"`
	TotalEquity     float64   `json:"total_equity"`
	TotalReturnPct  float64   `json:"total_return_pct"`
	OpenPositions   int       `json:"open_positions"`
	StartingCapital float64   `json:"starting_capital"`
}

func toStatusJSON(s domain.PortfolioStatus) statusJSON {
	return statusJSON{
		AsOf:            s.AsOf,
		Cash:            s.Cash,
		PositionsValue:  s.PositionsValue,
		TotalEquity:     s.TotalEquity,
		TotalReturnPct:  s.TotalReturnPct,
		OpenPositions:   s.OpenPositions,
		StartingCapital: s.StartingCapital,
	}
}

type snapshotJSON struct {
	Date           string   `json:"date"`
	Cash           float64  `json:"cash"`
	PositionsValue float64  `json:"positions_value"`
	TotalEquity    float64  `json:"total_equity"`
	DailyPnL       float64  `json:"daily_pnl"`
	DailyPnLPct    float64  `json:"daily_pnl_pct"`
	TotalReturnPct float64  `json:"total_return_pct"`
	PeakValue      float64  `json:"peak_value"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
	OpenPositions  int      `json:"open_positions"`
	BenchmarkClose *float64 `json:"benchmark_close,omitempty"`
}

func toSnapshotJSON(s domain.Snapshot) snapshotJSON {
	return snapshotJSON{
		Date:           s.Date.Format(time.DateOnly),
		Cash:           s.Cash,
		PositionsValue: s.PositionsValue,
		TotalEquity:    s.TotalEquity,
		DailyPnL:       s.DailyPnL,
		DailyPnLPct:    s.DailyPnLPct,
		TotalReturnPct: s.TotalReturnPct,
		PeakValue:      s.PeakValue,
		MaxDrawdownPct: s.MaxDrawdownPct,
		OpenPositions:  s.OpenPositions,
		BenchmarkClose: s.BenchmarkClose,
	}
}

type performanceJSON struct {
	TotalTrades int     `json:"total_trades"`
	Winners     int     `json:"winners"`
	Losers      int     `json:"losers"`
	WinRatePct  float64 `json:"win_rate_pct"`
	AvgWinPct   float64 `json:"avg_win_pct"`
	AvgLossPct  float64 `json:"avg_loss_pct"`
	// null when the book has no losses; encoding/json cannot encode Inf.
	ProfitFactor    *float64 `json:"profit_factor"`
	AvgRMultiple    float64  `json:"avg_r_multiple"`
	BestTradePct    float64  `json:"best_trade_pct"`
	WorstTradePct   float64  `json:"worst_trade_pct"`
	TotalReturnPct  float64  `json:"total_return_pct"`
	RealizedDollars float64  `json:"realized_dollars"`
}

func toPerformanceJSON(rep domain.PerformanceReport) performanceJSON {
	out := performanceJSON{
		TotalTrades:     rep.TotalTrades,
		Winners:         rep.Winners,
		Losers:          rep.Losers,
		WinRatePct:      rep.WinRatePct,
		AvgWinPct:       rep.AvgWinPct,
		AvgLossPct:      rep.AvgLossPct,
		AvgRMultiple:    rep.AvgRMultiple,
		BestTradePct:    rep.BestTradePct,
		WorstTradePct:   rep.WorstTradePct,
		TotalReturnPct:  rep.TotalReturnPct,
		RealizedDollars: rep.RealizedDollars,
	}
	if !math.IsInf(rep.ProfitFactor, 0) && !math.IsNaN(rep.ProfitFactor) {
		pf := rep.ProfitFactor
		out.ProfitFactor = &pf
	}
	return out
}
