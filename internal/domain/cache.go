package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest trade prices by ticker.
type PriceCache interface {
	SetPrice(ctx context.Context, ticker string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, ticker string) (float64, time.Time, error)
	GetPrices(ctx context.Context, tickers []string) (map[string]float64, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus provides pub/sub fan-out and a durable event stream.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for the key is permitted under the
	// limit, counting it when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion, used to hold the
// single-writer lock on the portfolio across processes.
type LockManager interface {
	// Acquire takes the lock for the key with the given TTL and returns the
	// release function, or ErrLockHeld when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
