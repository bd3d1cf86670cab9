// Package feed moves market prices into the system: a REST poller that
// sweeps open positions and the watchlist on an interval, and a stream
// feeder that applies live trade prints as they arrive.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"stockradar/internal/domain"
)

const defaultPollInterval = 5 * time.Minute

// PriceSource is the batched latest-trade call the poller sweeps with.
type PriceSource interface {
	LatestPrices(ctx context.Context, tickers []string) (map[string]float64, error)
}

// TickSink consumes one sweep of prices and returns the positions it
// closed. The trader's CheckAll satisfies it.
type TickSink interface {
	CheckAll(ctx context.Context, prices map[string]float64) ([]domain.Position, error)
}

// Poller periodically fetches latest prices for every open position and
// watchlist ticker, caches them and runs the stop and target checks.
type Poller struct {
	source    PriceSource
	ledger    domain.Ledger
	cache     domain.PriceCache
	sink      TickSink
	watchlist []string
	interval  time.Duration
	logger    *slog.Logger
}

// NewPoller creates a Poller. A non-positive interval uses the default.
func NewPoller(
	source PriceSource,
	ledger domain.Ledger,
	cache domain.PriceCache,
	sink TickSink,
	watchlist []string,
	interval time.Duration,
	logger *slog.Logger,
) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		source:    source,
		ledger:    ledger,
		cache:     cache,
		sink:      sink,
		watchlist: watchlist,
		interval:  interval,
		logger:    logger.With(slog.String("component", "poller")),
	}
}

// Run sweeps once immediately and then on every tick until cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("price poller started", slog.Duration("interval", p.interval))
	defer p.logger.Info("price poller stopped")

	if err := p.Sweep(ctx); err != nil {
		p.logger.Warn("sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Warn("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep fetches prices for the current ticker set, caches them and feeds
// them through the sink once.
func (p *Poller) Sweep(ctx context.Context) error {
	tickers, err := p.tickerSet(ctx)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return nil
	}

	prices, err := p.source.LatestPrices(ctx, tickers)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for ticker, price := range prices {
		if err := p.cache.SetPrice(ctx, ticker, price, now); err != nil {
			p.logger.Debug("price cache write failed",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()),
			)
		}
	}

	closed, err := p.sink.CheckAll(ctx, prices)
	if err != nil {
		return err
	}
	if len(closed) > 0 {
		p.logger.Info("sweep closed positions", slog.Int("count", len(closed)))
	}
	return nil
}

// tickerSet is the union of open position tickers and the watchlist.
func (p *Poller) tickerSet(ctx context.Context) ([]string, error) {
	open, err := p.ledger.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(open)+len(p.watchlist))
	for _, pos := range open {
		set[pos.Ticker] = struct{}{}
	}
	for _, ticker := range p.watchlist {
		set[ticker] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for ticker := range set {
		out = append(out, ticker)
	}
	sort.Strings(out)
	return out, nil
}
