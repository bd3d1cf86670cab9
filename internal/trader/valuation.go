package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stockradar/internal/domain"
)

// Valuation computes point-in-time portfolio value and writes the daily
// snapshot series.
type Valuation struct {
	ledger    domain.Ledger
	snapshots domain.SnapshotStore
	bus       domain.EventBus
	audit     domain.AuditStore
	benchmark string
	logger    *slog.Logger
}

// NewValuation creates a Valuation. benchmark names the ticker whose close
// is recorded on each snapshot for comparison; empty disables it.
func NewValuation(
	ledger domain.Ledger,
	snapshots domain.SnapshotStore,
	bus domain.EventBus,
	audit domain.AuditStore,
	benchmark string,
	logger *slog.Logger,
) *Valuation {
	return &Valuation{
		ledger:    ledger,
		snapshots: snapshots,
		bus:       bus,
		audit:     audit,
		benchmark: benchmark,
		logger:    logger,
	}
}

// Status values the portfolio at the given prices without persisting
// anything. Every open position must have a price in the map.
func (v *Valuation) Status(ctx context.Context, prices map[string]float64) (domain.PortfolioStatus, error) {
	open, err := v.ledger.ListOpen(ctx)
	if err != nil {
		return domain.PortfolioStatus{}, fmt.Errorf("valuation: list open: %w", err)
	}
	bal, err := v.ledger.Balance(ctx)
	if err != nil {
		return domain.PortfolioStatus{}, fmt.Errorf("valuation: balance: %w", err)
	}
	posValue, err := marketValue(open, prices)
	if err != nil {
		return domain.PortfolioStatus{}, fmt.Errorf("valuation: %w", err)
	}

	equity := bal.Cash + posValue
	status := domain.PortfolioStatus{
		AsOf:            time.Now().UTC(),
		Cash:            bal.Cash,
		PositionsValue:  posValue,
		TotalEquity:     equity,
		OpenPositions:   len(open),
		StartingCapital: bal.StartingCapital,
	}
	if bal.StartingCapital > 0 {
		status.TotalReturnPct = (equity - bal.StartingCapital) / bal.StartingCapital * 100
	}
	return status, nil
}

// Snapshot appends the end-of-day record for asOf's trading date. The daily
// PnL is measured against the prior snapshot and is zero on the first day;
// the peak value ratchets and the drawdown is measured from it. A date that
// already has a snapshot fails with ErrSnapshotExists before any valuation
// work.
func (v *Valuation) Snapshot(ctx context.Context, asOf time.Time, prices map[string]float64) (domain.Snapshot, error) {
	day := domain.TradingDate(asOf)

	if _, err := v.snapshots.GetByDate(ctx, day); err == nil {
		return domain.Snapshot{}, fmt.Errorf("valuation: snapshot %s: %w",
			day.Format(time.DateOnly), domain.ErrSnapshotExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Snapshot{}, fmt.Errorf("valuation: snapshot lookup: %w", err)
	}

	open, err := v.ledger.ListOpen(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("valuation: list open: %w", err)
	}
	bal, err := v.ledger.Balance(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("valuation: balance: %w", err)
	}
	posValue, err := marketValue(open, prices)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("valuation: %w", err)
	}

	equity := bal.Cash + posValue
	snap := domain.Snapshot{
		Date:           day,
		Cash:           bal.Cash,
		PositionsValue: posValue,
		TotalEquity:    equity,
		PeakValue:      equity,
		OpenPositions:  len(open),
		CreatedAt:      time.Now().UTC(),
	}
	if bal.StartingCapital > 0 {
		snap.TotalReturnPct = (equity - bal.StartingCapital) / bal.StartingCapital * 100
	}

	prior, err := v.snapshots.Latest(ctx)
	switch {
	case err == nil && prior.Date.Before(day):
		snap.DailyPnL = equity - prior.TotalEquity
		if prior.TotalEquity > 0 {
			snap.DailyPnLPct = snap.DailyPnL / prior.TotalEquity * 100
		}
		if prior.PeakValue > snap.PeakValue {
			snap.PeakValue = prior.PeakValue
		}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.Snapshot{}, fmt.Errorf("valuation: prior snapshot: %w", err)
	}
	if snap.PeakValue > 0 {
		snap.MaxDrawdownPct = (snap.PeakValue - equity) / snap.PeakValue * 100
	}
	if v.benchmark != "" {
		if px, ok := prices[v.benchmark]; ok {
			snap.BenchmarkClose = &px
		}
	}

	if err := v.snapshots.Insert(ctx, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("valuation: insert snapshot: %w", err)
	}

	v.publish(ctx, domain.Event{
		Type:   domain.EventSnapshotTaken,
		Price:  snap.TotalEquity,
		Reason: day.Format(time.DateOnly),
	})
	v.auditLog(ctx, "snapshot_taken", map[string]any{
		"date":           day.Format(time.DateOnly),
		"total_equity":   snap.TotalEquity,
		"cash":           snap.Cash,
		"daily_pnl":      snap.DailyPnL,
		"open_positions": snap.OpenPositions,
	})
	v.logger.InfoContext(ctx, "valuation: snapshot taken",
		slog.String("date", day.Format(time.DateOnly)),
		slog.Float64("total_equity", snap.TotalEquity),
		slog.Float64("daily_pnl", snap.DailyPnL),
		slog.Int("open_positions", snap.OpenPositions),
	)

	return snap, nil
}

// marketValue sums open positions at the given prices. A position whose
// ticker is missing from the map makes the whole valuation fail.
func marketValue(open []domain.Position, prices map[string]float64) (float64, error) {
	var total float64
	for _, pos := range open {
		px, ok := prices[pos.Ticker]
		if !ok {
			return 0, fmt.Errorf("%s: %w", pos.Ticker, domain.ErrMissingPrice)
		}
		total += pos.MarketValue(px)
	}
	return total, nil
}

func (v *Valuation) publish(ctx context.Context, evt domain.Event) {
	evt.ID = uuid.NewString()
	evt.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if pubErr := v.bus.Publish(ctx, domain.EventChannel, payload); pubErr != nil {
		v.logger.WarnContext(ctx, "valuation: publish event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", pubErr.Error()),
		)
	}
	if appendErr := v.bus.StreamAppend(ctx, domain.EventStream, payload); appendErr != nil {
		v.logger.WarnContext(ctx, "valuation: append event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", appendErr.Error()),
		)
	}
}

func (v *Valuation) auditLog(ctx context.Context, event string, detail map[string]any) {
	if auditErr := v.audit.Log(ctx, event, detail); auditErr != nil {
		v.logger.WarnContext(ctx, "valuation: audit log failed",
			slog.String("event", event),
			slog.String("error", auditErr.Error()),
		)
	}
}
