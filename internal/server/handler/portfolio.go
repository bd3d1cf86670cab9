package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"stockradar/internal/domain"
)

// Valuer values the portfolio against a price map.
type Valuer interface {
	Status(ctx context.Context, prices map[string]float64) (domain.PortfolioStatus, error)
	Snapshot(ctx context.Context, asOf time.Time, prices map[string]float64) (domain.Snapshot, error)
}

// SnapshotReader reads the stored snapshot series.
type SnapshotReader interface {
	ListRange(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error)
}

// OpenLister lists the open positions whose tickers need prices.
type OpenLister interface {
	ListOpen(ctx context.Context) ([]domain.Position, error)
}

// defaultSnapshotRange bounds GET /api/snapshots when no from date is given.
const defaultSnapshotRange = 90 * 24 * time.Hour

// PortfolioHandler serves the valuation endpoints.
type PortfolioHandler struct {
	valuation Valuer
	snapshots SnapshotReader
	ledger    OpenLister
	prices    domain.PriceCache
	benchmark string
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler. The benchmark ticker is
// added to price lookups for snapshots; empty disables it.
func NewPortfolioHandler(valuation Valuer, snapshots SnapshotReader, ledger OpenLister, prices domain.PriceCache, benchmark string, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		valuation: valuation,
		snapshots: snapshots,
		ledger:    ledger,
		prices:    prices,
		benchmark: benchmark,
		logger:    logger,
	}
}

// GetStatus returns the point-in-time portfolio valuation at cached prices.
// GET /api/portfolio
func (h *PortfolioHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	prices, err := h.openPrices(r.Context(), false)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: price lookup failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}

	status, err := h.valuation.Status(r.Context(), prices)
	if err != nil {
		if errors.Is(err, domain.ErrMissingPrice) {
			writeError(w, http.StatusServiceUnavailable, "price data incomplete: "+err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: portfolio status failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to value portfolio")
		return
	}
	writeJSON(w, http.StatusOK, toStatusJSON(status))
}

type listSnapshotsResponse struct {
	Snapshots []snapshotJSON `json:"snapshots"`
}

// ListSnapshots returns the snapshot series for a date range, oldest first.
// Defaults to the trailing 90 days.
// GET /api/snapshots?from=2025-06-01&to=2025-06-30
func (h *PortfolioHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	to := domain.TradingDate(time.Now().UTC())
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
			return
		}
		to = t
	}

	from := to.Add(-defaultSnapshotRange)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
			return
		}
		from = t
	}

	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from date is after to date")
		return
	}

	snaps, err := h.snapshots.ListRange(r.Context(), from, to)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list snapshots failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	out := make([]snapshotJSON, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshotJSON(s))
	}
	writeJSON(w, http.StatusOK, listSnapshotsResponse{Snapshots: out})
}

// TakeSnapshot records today's end-of-day snapshot at cached prices.
// POST /api/snapshots
func (h *PortfolioHandler) TakeSnapshot(w http.ResponseWriter, r *http.Request) {
	prices, err := h.openPrices(r.Context(), true)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: price lookup failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}

	snap, err := h.valuation.Snapshot(r.Context(), time.Now().UTC(), prices)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSnapshotExists):
			writeError(w, http.StatusConflict, "snapshot already taken for today")
		case errors.Is(err, domain.ErrMissingPrice):
			writeError(w, http.StatusServiceUnavailable, "price data incomplete: "+err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: snapshot failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to take snapshot")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotJSON(snap))
}

// openPrices loads cached prices for every open ticker, plus the benchmark
// when asked. Tickers with no cached price are absent from the map; the
// valuation service turns that into ErrMissingPrice.
func (h *PortfolioHandler) openPrices(ctx context.Context, withBenchmark bool) (map[string]float64, error) {
	open, err := h.ledger.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(open)+1)
	for _, pos := range open {
		tickers = append(tickers, pos.Ticker)
	}
	if withBenchmark && h.benchmark != "" {
		tickers = append(tickers, h.benchmark)
	}

	return h.prices.GetPrices(ctx, tickers)
}
