package feed

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"stockradar/internal/domain"
	"stockradar/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	prices    map[string]float64
	requested []string
}

func (f *fakeSource) LatestPrices(_ context.Context, tickers []string) (map[string]float64, error) {
	f.requested = append([]string(nil), tickers...)
	out := make(map[string]float64)
	for _, t := range tickers {
		if px, ok := f.prices[t]; ok {
			out[t] = px
		}
	}
	return out, nil
}

type fakeCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newFakeCache() *fakeCache {
	return &fakeCache{prices: make(map[string]float64)}
}

func (c *fakeCache) SetPrice(_ context.Context, ticker string, price float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[ticker] = price
	return nil
}

func (c *fakeCache) GetPrice(_ context.Context, ticker string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	px, ok := c.prices[ticker]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return px, time.Now().UTC(), nil
}

func (c *fakeCache) GetPrices(_ context.Context, tickers []string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64)
	for _, t := range tickers {
		if px, ok := c.prices[t]; ok {
			out[t] = px
		}
	}
	return out, nil
}

type noopBus struct{}

func (noopBus) Publish(context.Context, string, []byte) error { return nil }

func (noopBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (noopBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (noopBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeSink struct {
	got map[string]float64
}

func (s *fakeSink) CheckAll(_ context.Context, prices map[string]float64) ([]domain.Position, error) {
	s.got = prices
	return nil, nil
}

func openPosition(t *testing.T, ledger *memory.Ledger, ticker string) {
	t.Helper()
	_, err := ledger.Open(context.Background(), domain.Position{
		Ticker:       ticker,
		EntryDate:    domain.TradingDate(time.Now().UTC()),
		EntryPrice:   100,
		Shares:       10,
		InitialStop:  93,
		StopPrice:    93,
		TargetPrice:  120,
		HighestPrice: 100,
	})
	if err != nil {
		t.Fatalf("Open %s: %v", ticker, err)
	}
}

func TestPollerSweep(t *testing.T) {
	ctx := context.Background()
	ledger, err := memory.NewLedger(100000)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	openPosition(t, ledger, "AAPL")

	source := &fakeSource{prices: map[string]float64{"AAPL": 101, "NVDA": 202}}
	cache := newFakeCache()
	sink := &fakeSink{}

	p := NewPoller(source, ledger, cache, sink, []string{"NVDA", "AAPL"}, time.Minute, discardLogger())
	if err := p.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// Open position and watchlist tickers, deduplicated and sorted.
	if want := []string{"AAPL", "NVDA"}; !reflect.DeepEqual(source.requested, want) {
		t.Errorf("requested = %v, want %v", source.requested, want)
	}
	if cache.prices["AAPL"] != 101 || cache.prices["NVDA"] != 202 {
		t.Errorf("cached prices = %v", cache.prices)
	}
	if sink.got["AAPL"] != 101 {
		t.Errorf("sink prices = %v, want AAPL at 101", sink.got)
	}
}

func TestPollerSweepEmpty(t *testing.T) {
	ctx := context.Background()
	ledger, err := memory.NewLedger(100000)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	source := &fakeSource{prices: map[string]float64{}}
	sink := &fakeSink{}
	p := NewPoller(source, ledger, newFakeCache(), sink, nil, time.Minute, discardLogger())

	if err := p.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if source.requested != nil {
		t.Errorf("requested = %v, want no fetch with nothing to poll", source.requested)
	}
}
