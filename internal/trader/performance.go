package trader

import (
	"context"
	"fmt"
	"math"

	"stockradar/internal/domain"
)

// Performance aggregates every closed trade into a report. Winners are
// trades with a positive return; flat trades count as losers. The average
// R-multiple runs over all trades, treating positions without a recorded
// risk as zero R.
func (v *Valuation) Performance(ctx context.Context) (domain.PerformanceReport, error) {
	closed, err := v.ledger.ListClosed(ctx, domain.ListOpts{})
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("valuation: list closed: %w", err)
	}

	rep := domain.PerformanceReport{TotalTrades: len(closed)}
	if len(closed) == 0 {
		return rep, nil
	}

	bal, err := v.ledger.Balance(ctx)
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("valuation: balance: %w", err)
	}

	var (
		grossWins, grossLosses float64
		winPctSum, lossPctSum  float64
		rSum                   float64
	)
	best := math.Inf(-1)
	worst := math.Inf(1)

	for _, tr := range closed {
		retPct := deref(tr.ReturnPct)
		retDollars := deref(tr.ReturnDollars)
		rep.RealizedDollars += retDollars

		if retPct > 0 {
			rep.Winners++
			grossWins += retDollars
			winPctSum += retPct
		} else {
			rep.Losers++
			grossLosses += -retDollars
			lossPctSum += retPct
		}
		rSum += deref(tr.RMultiple)

		if retPct > best {
			best = retPct
		}
		if retPct < worst {
			worst = retPct
		}
	}

	rep.WinRatePct = float64(rep.Winners) / float64(rep.TotalTrades) * 100
	if rep.Winners > 0 {
		rep.AvgWinPct = winPctSum / float64(rep.Winners)
	}
	if rep.Losers > 0 {
		rep.AvgLossPct = lossPctSum / float64(rep.Losers)
	}
	switch {
	case grossLosses > 0:
		rep.ProfitFactor = grossWins / grossLosses
	case grossWins > 0:
		rep.ProfitFactor = math.Inf(1)
	}
	rep.AvgRMultiple = rSum / float64(rep.TotalTrades)
	rep.BestTradePct = best
	rep.WorstTradePct = worst
	if bal.StartingCapital > 0 {
		rep.TotalReturnPct = rep.RealizedDollars / bal.StartingCapital * 100
	}

	return rep, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
