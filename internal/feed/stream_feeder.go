package feed

import (
	"context"
	"log/slog"
	"time"

	"stockradar/internal/domain"
	"stockradar/internal/trader"
)

// StreamFeeder turns live trade prints into cache writes and stop checks.
// Its HandleTrade method is the stream's trade handler.
type StreamFeeder struct {
	cache  domain.PriceCache
	svc    *trader.Service
	logger *slog.Logger
}

// NewStreamFeeder creates a StreamFeeder.
func NewStreamFeeder(cache domain.PriceCache, svc *trader.Service, logger *slog.Logger) *StreamFeeder {
	return &StreamFeeder{
		cache:  cache,
		svc:    svc,
		logger: logger.With(slog.String("component", "stream_feeder")),
	}
}

// HandleTrade caches the print and runs it through the position checks.
func (f *StreamFeeder) HandleTrade(ctx context.Context, ticker string, price float64, at time.Time) {
	if err := f.cache.SetPrice(ctx, ticker, price, at); err != nil {
		f.logger.Debug("price cache write failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
	}
	if _, err := f.svc.ProcessTick(ctx, ticker, price); err != nil {
		f.logger.Warn("tick processing failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
	}
}
