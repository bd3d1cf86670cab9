package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stockradar/internal/domain"
)

// EarningsStore is an in-memory implementation of domain.EarningsStore.
type EarningsStore struct {
	mu   sync.RWMutex
	data map[string]domain.EarningsDate // keyed by ticker
}

// NewEarningsStore creates an in-memory earnings store.
func NewEarningsStore() *EarningsStore {
	return &EarningsStore{data: make(map[string]domain.EarningsDate)}
}

// Upsert inserts or replaces the earnings date for a ticker.
func (s *EarningsStore) Upsert(_ context.Context, e domain.EarningsDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.Ticker] = e
	return nil
}

// Get returns the earnings date for a ticker.
func (s *EarningsStore) Get(_ context.Context, ticker string) (domain.EarningsDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[ticker]
	if !ok {
		return domain.EarningsDate{}, fmt.Errorf("memory: earnings %s: %w", ticker, domain.ErrNotFound)
	}
	return e, nil
}

// List returns all known earnings dates ordered by ticker.
func (s *EarningsStore) List(_ context.Context) ([]domain.EarningsDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EarningsDate, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

var _ domain.EarningsStore = (*EarningsStore)(nil)
