package domain

import (
	"context"
	"time"
)

// PriceFeed supplies market data for tickers.
type PriceFeed interface {
	// LatestPrice returns the most recent trade price and its timestamp.
	LatestPrice(ctx context.Context, ticker string) (float64, time.Time, error)

	// DailyBars returns up to the last n daily bars, oldest first.
	DailyBars(ctx context.Context, ticker string, n int) ([]Bar, error)
}
