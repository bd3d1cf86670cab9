// Package alpaca wraps the Alpaca market data API behind the price feed
// interface and provides the live trade stream.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockradar/internal/domain"
)

// Config holds market data credentials and feed selection.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // empty uses the production data endpoint
	Feed      string // "iex" or "sip"
}

// Client fetches latest trades and daily bars.
type Client struct {
	md   *marketdata.Client
	feed marketdata.Feed
}

var _ domain.PriceFeed = (*Client)(nil)

// NewClient creates a market data client.
func NewClient(cfg Config) *Client {
	return &Client{
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		feed: marketdata.Feed(cfg.Feed),
	}
}

// LatestPrice returns the most recent trade print for a ticker.
func (c *Client) LatestPrice(_ context.Context, ticker string) (float64, time.Time, error) {
	trade, err := c.md.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{Feed: c.feed})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("alpaca: latest trade %s: %w", ticker, err)
	}
	return trade.Price, trade.Timestamp, nil
}

// LatestPrices returns the most recent trade price for each ticker in one
// request. Tickers with no trade are absent from the result.
func (c *Client) LatestPrices(_ context.Context, tickers []string) (map[string]float64, error) {
	if len(tickers) == 0 {
		return map[string]float64{}, nil
	}
	trades, err := c.md.GetLatestTrades(tickers, marketdata.GetLatestTradeRequest{Feed: c.feed})
	if err != nil {
		return nil, fmt.Errorf("alpaca: latest trades: %w", err)
	}
	out := make(map[string]float64, len(trades))
	for ticker, trade := range trades {
		out[ticker] = trade.Price
	}
	return out, nil
}

// DailyBars returns up to the last n split-adjusted daily bars, oldest
// first. The request spans enough calendar days to cover n sessions plus
// weekends and holidays, then trims to the tail.
func (c *Client) DailyBars(_ context.Context, ticker string, n int) ([]domain.Bar, error) {
	if n <= 0 {
		return nil, fmt.Errorf("alpaca: bars %s: count %d: %w", ticker, n, domain.ErrInvalidParameter)
	}

	start := time.Now().UTC().AddDate(0, 0, -(n*7/5 + 10))
	bars, err := c.md.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Split,
		Start:      start,
		Feed:       c.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca: bars %s: %w", ticker, err)
	}

	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.Bar{
			Date:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
