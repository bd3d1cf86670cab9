package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockradar/internal/domain"
)

func TestSnapshotStore_InsertAndDuplicate(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(client.Pool())

	snap := domain.Snapshot{
		Date:           testDate(2025, 3, 3),
		Cash:           95000,
		PositionsValue: 5200,
		TotalEquity:    100200,
		DailyPnL:       200,
		DailyPnLPct:    0.2,
		TotalReturnPct: 0.2,
		PeakValue:      100200,
		MaxDrawdownPct: 0,
		OpenPositions:  1,
		BenchmarkClose: ptr(512.34),
	}
	require.NoError(t, store.Insert(ctx, snap))

	err := store.Insert(ctx, snap)
	assert.ErrorIs(t, err, domain.ErrSnapshotExists)

	got, err := store.GetByDate(ctx, testDate(2025, 3, 3))
	require.NoError(t, err)
	assert.InDelta(t, 100200, got.TotalEquity, 1e-9)
	require.NotNil(t, got.BenchmarkClose)
	assert.InDelta(t, 512.34, *got.BenchmarkClose, 1e-9)
	assert.Equal(t, 1, got.OpenPositions)
}

func TestSnapshotStore_LatestAndRange(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(client.Pool())

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for d := 1; d <= 6; d++ {
		require.NoError(t, store.Insert(ctx, domain.Snapshot{
			Date:        testDate(2025, 3, d),
			Cash:        100000,
			TotalEquity: 100000 + float64(d),
		}))
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Date.Equal(testDate(2025, 3, 6)))
	assert.InDelta(t, 100006, latest.TotalEquity, 1e-9)

	got, err := store.ListRange(ctx, testDate(2025, 3, 2), testDate(2025, 3, 4))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Equal(testDate(2025, 3, 2)))
	assert.True(t, got[2].Date.Equal(testDate(2025, 3, 4)))

	old, err := store.ListBefore(ctx, testDate(2025, 3, 3))
	require.NoError(t, err)
	require.Len(t, old, 2)

	n, err := store.DeleteBefore(ctx, testDate(2025, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEarningsStore_UpsertAndGet(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEarningsStore(client.Pool())

	_, err := store.Get(ctx, "NVDA")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, domain.EarningsDate{
		Ticker:     "NVDA",
		ReportDate: testDate(2025, 5, 28),
	}))

	got, err := store.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.True(t, got.ReportDate.Equal(testDate(2025, 5, 28)))

	// The second upsert replaces the date.
	require.NoError(t, store.Upsert(ctx, domain.EarningsDate{
		Ticker:     "NVDA",
		ReportDate: testDate(2025, 6, 4),
	}))
	got, err = store.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.True(t, got.ReportDate.Equal(testDate(2025, 6, 4)))

	require.NoError(t, store.Upsert(ctx, domain.EarningsDate{
		Ticker:     "AMD",
		ReportDate: testDate(2025, 5, 6),
	}))
	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AMD", all[0].Ticker)
}

func TestAuditStore_LogAndList(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAuditStore(client.Pool())

	require.NoError(t, store.Log(ctx, "position.opened", map[string]any{"ticker": "NVDA", "shares": 50}))
	require.NoError(t, store.Log(ctx, "position.closed", map[string]any{"ticker": "NVDA", "reason": "TARGET"}))

	entries, err := store.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "position.closed", entries[0].Event)
	assert.Equal(t, "NVDA", entries[0].Detail["ticker"])
}
