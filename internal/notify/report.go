package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"stockradar/internal/domain"
	"stockradar/internal/screener"
)

// DailyReport renders the end-of-day summary sent after the evening
// snapshot: equity and day move, open positions with their stops, and the
// closed-trade statistics so far.
func DailyReport(snap domain.Snapshot, rep domain.PerformanceReport, open []domain.Position) (title, message string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Equity $%.2f (%+.2f / %+.2f%% today)\n",
		snap.TotalEquity, snap.DailyPnL, snap.DailyPnLPct)
	fmt.Fprintf(&b, "Cash $%.2f", snap.Cash)
	if snap.MaxDrawdownPct > 0 {
		fmt.Fprintf(&b, ", %.1f%% off peak", snap.MaxDrawdownPct)
	}
	b.WriteString("\n")

	if len(open) > 0 {
		fmt.Fprintf(&b, "\nOpen positions (%d):\n", len(open))
		for _, pos := range open {
			fmt.Fprintf(&b, "%s: %d shares @ $%.2f, stop $%.2f\n",
				pos.Ticker, pos.Shares, pos.EntryPrice, pos.StopPrice)
		}
	}

	if rep.TotalTrades > 0 {
		fmt.Fprintf(&b, "\nClosed trades: %d (%.0f%% winners)\n",
			rep.TotalTrades, rep.WinRatePct)
		if rep.Losers > 0 && !math.IsInf(rep.ProfitFactor, 1) {
			fmt.Fprintf(&b, "Profit factor %.2f, avg R %.2f\n",
				rep.ProfitFactor, rep.AvgRMultiple)
		}
		fmt.Fprintf(&b, "Realized $%+.2f\n", rep.RealizedDollars)
	}

	title = "Daily report " + snap.Date.Format(time.DateOnly)
	return title, strings.TrimRight(b.String(), "\n")
}

// WatchReport renders the morning scan summary: names sitting near their
// pivots and any breakouts already confirmed. An empty scan returns an
// empty title so callers can skip sending.
func WatchReport(watch []screener.WatchItem, breakouts []domain.Candidate) (title, message string) {
	if len(watch) == 0 && len(breakouts) == 0 {
		return "", ""
	}

	var b strings.Builder

	if len(breakouts) > 0 {
		fmt.Fprintf(&b, "Confirmed breakouts (%d):\n", len(breakouts))
		for _, cand := range breakouts {
			fmt.Fprintf(&b, "%s: $%.2f over pivot $%.2f, grade %s (score %d)\n",
				cand.Ticker, cand.Price, cand.Pivot, cand.Quality, cand.Score)
		}
	}

	near := 0
	for _, item := range watch {
		if item.NearBreakout {
			near++
		}
	}
	if len(watch) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Watching %d setups (%d near pivot):\n", len(watch), near)
		for _, item := range watch {
			marker := ""
			if item.NearBreakout {
				marker = " *"
			}
			fmt.Fprintf(&b, "%s: $%.2f vs pivot $%.2f (%+.1f%%)%s\n",
				item.Ticker, item.Price, item.Pivot, item.DistancePct, marker)
		}
	}

	return "Morning scan", strings.TrimRight(b.String(), "\n")
}
