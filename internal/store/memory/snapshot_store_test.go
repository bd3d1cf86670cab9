package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockradar/internal/domain"
)

func snap(d time.Time, equity float64) domain.Snapshot {
	return domain.Snapshot{
		Date:        d,
		Cash:        equity,
		TotalEquity: equity,
	}
}

func TestSnapshotStoreInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	d := date(2025, 3, 3)
	if err := s.Insert(ctx, snap(d, 100000)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.Insert(ctx, snap(d, 100500))
	if !errors.Is(err, domain.ErrSnapshotExists) {
		t.Fatalf("err = %v, want ErrSnapshotExists", err)
	}

	// The original record is untouched.
	got, err := s.GetByDate(ctx, d)
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if got.TotalEquity != 100000 {
		t.Fatalf("TotalEquity = %v, want original 100000", got.TotalEquity)
	}

	// Same calendar date at a different clock time still collides.
	err = s.Insert(ctx, snap(d.Add(16*time.Hour), 100500))
	if !errors.Is(err, domain.ErrSnapshotExists) {
		t.Fatalf("err = %v, want ErrSnapshotExists", err)
	}
}

func TestSnapshotStoreLatest(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	if _, err := s.Latest(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty Latest err = %v, want ErrNotFound", err)
	}

	s.Insert(ctx, snap(date(2025, 3, 3), 100000))
	s.Insert(ctx, snap(date(2025, 3, 5), 100700))
	s.Insert(ctx, snap(date(2025, 3, 4), 100300))

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.Date.Equal(date(2025, 3, 5)) {
		t.Fatalf("Latest date = %v, want 2025-03-05", latest.Date)
	}
}

func TestSnapshotStoreListRange(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	for d := 1; d <= 10; d++ {
		s.Insert(ctx, snap(date(2025, 3, d), 100000+float64(d)))
	}

	got, err := s.ListRange(ctx, date(2025, 3, 3), date(2025, 3, 6))
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Fatalf("not ordered: %v then %v", got[i-1].Date, got[i].Date)
		}
	}
}

func TestSnapshotStoreDeleteBefore(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	for d := 1; d <= 5; d++ {
		s.Insert(ctx, snap(date(2025, 3, d), 100000))
	}

	old, err := s.ListBefore(ctx, date(2025, 3, 4))
	if err != nil {
		t.Fatalf("ListBefore: %v", err)
	}
	if len(old) != 3 {
		t.Fatalf("ListBefore len = %d, want 3", len(old))
	}

	n, err := s.DeleteBefore(ctx, date(2025, 3, 4))
	if err != nil || n != 3 {
		t.Fatalf("DeleteBefore = %d, %v; want 3, nil", n, err)
	}
	if _, err := s.GetByDate(ctx, date(2025, 3, 2)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted snapshot still present")
	}
}
