package handler

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"testing"
	"time"

	"stockradar/internal/domain"
	"stockradar/internal/store/memory"
	"stockradar/internal/trader"
)

// fakePriceCache is an in-memory domain.PriceCache. Tickers with no entry
// are omitted from GetPrices, matching the Redis implementation.
type fakePriceCache struct {
	prices map[string]float64
}

func (f *fakePriceCache) SetPrice(_ context.Context, ticker string, price float64, _ time.Time) error {
	f.prices[ticker] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, ticker string) (float64, time.Time, error) {
	px, ok := f.prices[ticker]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return px, time.Now().UTC(), nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, tickers []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, t := range tickers {
		if px, ok := f.prices[t]; ok {
			out[t] = px
		}
	}
	return out, nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newPortfolioMux(t *testing.T) (*http.ServeMux, *trader.Service, *fakePriceCache, *memory.SnapshotStore) {
	t.Helper()

	ledger := newTestLedger(t)
	snaps := memory.NewSnapshotStore()
	audit := memory.NewAuditStore()
	svc := trader.New(ledger, noopBus{}, audit, nil, trader.Config{}, discardLogger())
	valuation := trader.NewValuation(ledger, snaps, noopBus{}, audit, "SPY", discardLogger())
	cache := &fakePriceCache{prices: map[string]float64{}}

	h := NewPortfolioHandler(valuation, snaps, ledger, cache, "SPY", discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/portfolio", h.GetStatus)
	mux.HandleFunc("GET /api/snapshots", h.ListSnapshots)
	mux.HandleFunc("POST /api/snapshots", h.TakeSnapshot)
	return mux, svc, cache, snaps
}

func TestGetPortfolioStatus(t *testing.T) {
	mux, svc, cache, _ := newPortfolioMux(t)
	pos := enterPosition(t, svc, "AAPL", 100)
	cache.prices["AAPL"] = 110

	rec := doRequest(mux, http.MethodGet, "/api/portfolio", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var got struct {
		Cash           float64 `json:"cash"`
		PositionsValue float64 `json:"positions_value"`
		TotalEquity    float64 `json:"total_equity"`
		OpenPositions  int     `json:"open_positions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	wantCash := 100_000 - float64(pos.Shares)*100
	wantValue := float64(pos.Shares) * 110
	if !almostEqual(got.Cash, wantCash) {
		t.Errorf("cash = %.2f, want %.2f", got.Cash, wantCash)
	}
	if !almostEqual(got.PositionsValue, wantValue) {
		t.Errorf("positions_value = %.2f, want %.2f", got.PositionsValue, wantValue)
	}
	if !almostEqual(got.TotalEquity, wantCash+wantValue) {
		t.Errorf("total_equity = %.2f, want %.2f", got.TotalEquity, wantCash+wantValue)
	}
	if got.OpenPositions != 1 {
		t.Errorf("open_positions = %d, want 1", got.OpenPositions)
	}
}

func TestGetPortfolioStatusMissingPrice(t *testing.T) {
	mux, svc, _, _ := newPortfolioMux(t)
	enterPosition(t, svc, "AAPL", 100)

	rec := doRequest(mux, http.MethodGet, "/api/portfolio", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestTakeSnapshot(t *testing.T) {
	mux, svc, cache, _ := newPortfolioMux(t)
	enterPosition(t, svc, "AAPL", 100)
	cache.prices["AAPL"] = 105
	cache.prices["SPY"] = 500

	rec := doRequest(mux, http.MethodPost, "/api/snapshots", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var got struct {
		Date           string   `json:"date"`
		TotalEquity    float64  `json:"total_equity"`
		OpenPositions  int      `json:"open_positions"`
		BenchmarkClose *float64 `json:"benchmark_close"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := time.Now().UTC().Format(time.DateOnly); got.Date != want {
		t.Errorf("date = %q, want %q", got.Date, want)
	}
	if got.OpenPositions != 1 {
		t.Errorf("open_positions = %d, want 1", got.OpenPositions)
	}
	if got.BenchmarkClose == nil || *got.BenchmarkClose != 500 {
		t.Errorf("benchmark_close = %v, want 500", got.BenchmarkClose)
	}

	// Same trading date again conflicts.
	rec = doRequest(mux, http.MethodPost, "/api/snapshots", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second snapshot status = %d, want 409", rec.Code)
	}
}

func TestTakeSnapshotMissingPrice(t *testing.T) {
	mux, svc, cache, _ := newPortfolioMux(t)
	enterPosition(t, svc, "AAPL", 100)
	cache.prices["SPY"] = 500 // benchmark cached but the open ticker is not

	rec := doRequest(mux, http.MethodPost, "/api/snapshots", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestListSnapshots(t *testing.T) {
	mux, _, _, snaps := newPortfolioMux(t)

	ctx := context.Background()
	for _, d := range []time.Time{
		time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	} {
		if err := snaps.Insert(ctx, domain.Snapshot{Date: d, TotalEquity: 100_000, PeakValue: 100_000}); err != nil {
			t.Fatalf("Insert %s: %v", d.Format(time.DateOnly), err)
		}
	}

	rec := doRequest(mux, http.MethodGet, "/api/snapshots?from=2025-06-01&to=2025-06-30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Snapshots []struct {
			Date string `json:"date"`
		} `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Snapshots) != 2 {
		t.Fatalf("len(snapshots) = %d, want 2", len(resp.Snapshots))
	}
	if resp.Snapshots[0].Date != "2025-06-01" || resp.Snapshots[1].Date != "2025-06-02" {
		t.Errorf("dates = %q, %q; want 2025-06-01, 2025-06-02",
			resp.Snapshots[0].Date, resp.Snapshots[1].Date)
	}
}

func TestListSnapshotsBadRange(t *testing.T) {
	mux, _, _, _ := newPortfolioMux(t)

	rec := doRequest(mux, http.MethodGet, "/api/snapshots?from=2025-07-01&to=2025-06-01", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reversed range status = %d, want 400", rec.Code)
	}

	rec = doRequest(mux, http.MethodGet, "/api/snapshots?from=junk", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad from status = %d, want 400", rec.Code)
	}
}
