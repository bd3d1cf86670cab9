package notify

import (
	"math"
	"strings"
	"testing"
	"time"

	"stockradar/internal/domain"
	"stockradar/internal/screener"
)

func TestDailyReport(t *testing.T) {
	snap := domain.Snapshot{
		Date:           time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Cash:           80000,
		TotalEquity:    102000,
		DailyPnL:       1000,
		DailyPnLPct:    0.99,
		MaxDrawdownPct: 1.5,
	}
	rep := domain.PerformanceReport{
		TotalTrades:     2,
		Winners:         1,
		Losers:          1,
		WinRatePct:      50,
		ProfitFactor:    2,
		AvgRMultiple:    0.5,
		RealizedDollars: 50,
	}
	open := []domain.Position{
		{Ticker: "NVDA", Shares: 200, EntryPrice: 100, StopPrice: 95},
	}

	title, message := DailyReport(snap, rep, open)

	if title != "Daily report 2025-06-02" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"Equity $102000.00 (+1000.00 / +0.99% today)",
		"Cash $80000.00, 1.5% off peak",
		"Open positions (1):",
		"NVDA: 200 shares @ $100.00, stop $95.00",
		"Closed trades: 2 (50% winners)",
		"Profit factor 2.00, avg R 0.50",
		"Realized $+50.00",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q:\n%s", want, message)
		}
	}
}

func TestDailyReportNoLosses(t *testing.T) {
	snap := domain.Snapshot{
		Date:        time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Cash:        100000,
		TotalEquity: 100500,
	}
	rep := domain.PerformanceReport{
		TotalTrades:     1,
		Winners:         1,
		WinRatePct:      100,
		ProfitFactor:    math.Inf(1),
		RealizedDollars: 500,
	}

	_, message := DailyReport(snap, rep, nil)

	if strings.Contains(message, "Profit factor") {
		t.Errorf("profit factor rendered with no losses:\n%s", message)
	}
	if strings.Contains(message, "Inf") {
		t.Errorf("infinity leaked into report:\n%s", message)
	}
	if strings.Contains(message, "off peak") {
		t.Errorf("drawdown rendered at zero:\n%s", message)
	}
	if strings.Contains(message, "Open positions") {
		t.Errorf("open positions section rendered when empty:\n%s", message)
	}
}

func TestWatchReport(t *testing.T) {
	watch := []screener.WatchItem{
		{Ticker: "AMD", Price: 98, Pivot: 100, DistancePct: -2, Score: 55, NearBreakout: true},
		{Ticker: "PLTR", Price: 40, Pivot: 45, DistancePct: -11.1, Score: 48},
	}
	breakouts := []domain.Candidate{
		{Ticker: "NVDA", Price: 105.5, Pivot: 104, Quality: domain.QualityA, Score: 72},
	}

	title, message := WatchReport(watch, breakouts)

	if title != "Morning scan" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"Confirmed breakouts (1):",
		"NVDA: $105.50 over pivot $104.00, grade A (score 72)",
		"Watching 2 setups (1 near pivot):",
		"AMD: $98.00 vs pivot $100.00 (-2.0%) *",
		"PLTR: $40.00 vs pivot $45.00 (-11.1%)",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q:\n%s", want, message)
		}
	}
}

func TestWatchReportEmpty(t *testing.T) {
	title, message := WatchReport(nil, nil)
	if title != "" || message != "" {
		t.Errorf("empty scan rendered a report: %q / %q", title, message)
	}
}
