package feed

import (
	"context"
	"testing"
	"time"

	"stockradar/internal/store/memory"
	"stockradar/internal/trader"
)

func TestStreamFeederStopExit(t *testing.T) {
	ctx := context.Background()
	ledger, err := memory.NewLedger(100000)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	svc := trader.New(ledger, noopBus{}, memory.NewAuditStore(), nil, trader.Config{}, discardLogger())

	if _, err := svc.EnterPosition(ctx, trader.EntryRequest{
		Ticker: "NVDA", EntryPrice: 100, PortfolioValue: 100000,
	}); err != nil {
		t.Fatalf("EnterPosition: %v", err)
	}

	cache := newFakeCache()
	f := NewStreamFeeder(cache, svc, discardLogger())

	// A print through the 7% stop closes the position and lands in the cache.
	f.HandleTrade(ctx, "NVDA", 92, time.Now().UTC())

	if cache.prices["NVDA"] != 92 {
		t.Errorf("cached price = %v, want 92", cache.prices["NVDA"])
	}
	count, err := ledger.CountOpen(ctx)
	if err != nil {
		t.Fatalf("CountOpen: %v", err)
	}
	if count != 0 {
		t.Errorf("CountOpen = %d, want 0 after the stop print", count)
	}
}
