package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stockradar/internal/domain"
)

// SnapshotStore is an in-memory implementation of domain.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]domain.Snapshot // keyed by date in 2006-01-02 form
}

// NewSnapshotStore creates an in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string]domain.Snapshot)}
}

func dateKey(t time.Time) string {
	return domain.TradingDate(t).Format("2006-01-02")
}

// Insert appends the snapshot for its date. A second snapshot for the same
// date fails with ErrSnapshotExists.
func (s *SnapshotStore) Insert(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dateKey(snap.Date)
	if _, exists := s.data[key]; exists {
		return fmt.Errorf("memory: snapshot %s: %w", key, domain.ErrSnapshotExists)
	}

	snap.Date = domain.TradingDate(snap.Date)
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	s.data[key] = snap
	return nil
}

// Latest returns the most recent snapshot by date.
func (s *SnapshotStore) Latest(_ context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest domain.Snapshot
	found := false
	for _, snap := range s.data {
		if !found || snap.Date.After(latest.Date) {
			latest = snap
			found = true
		}
	}
	if !found {
		return domain.Snapshot{}, fmt.Errorf("memory: latest snapshot: %w", domain.ErrNotFound)
	}
	return latest, nil
}

// GetByDate returns the snapshot for the given date.
func (s *SnapshotStore) GetByDate(_ context.Context, date time.Time) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[dateKey(date)]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("memory: snapshot %s: %w", dateKey(date), domain.ErrNotFound)
	}
	return snap, nil
}

// ListRange returns snapshots with from <= date <= to, oldest first.
func (s *SnapshotStore) ListRange(_ context.Context, from, to time.Time) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromD, toD := domain.TradingDate(from), domain.TradingDate(to)
	var out []domain.Snapshot
	for _, snap := range s.data {
		if !snap.Date.Before(fromD) && !snap.Date.After(toD) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListBefore returns snapshots dated strictly before the cutoff, oldest
// first.
func (s *SnapshotStore) ListBefore(_ context.Context, before time.Time) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Snapshot
	for _, snap := range s.data {
		if snap.Date.Before(before) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DeleteBefore removes snapshots dated strictly before the cutoff.
func (s *SnapshotStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, snap := range s.data {
		if snap.Date.Before(before) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
