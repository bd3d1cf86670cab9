package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockradar/internal/domain"
)

func testDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestPosition(ticker string, entry float64, shares int) domain.Position {
	return domain.Position{
		Ticker:       ticker,
		EntryDate:    testDate(2025, 3, 3),
		EntryPrice:   entry,
		Shares:       shares,
		InitialStop:  entry * 0.93,
		StopPrice:    entry * 0.93,
		TargetPrice:  entry * 1.20,
		HighestPrice: entry,
		RiskPerShare: entry * 0.07,
		SignalSource: "breakout",
	}
}

func TestLedger_OpenCloseLifecycle(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ledger, err := NewLedger(ctx, client.Pool(), 100000)
	require.NoError(t, err)

	pos, err := ledger.Open(ctx, newTestPosition("NVDA", 100, 50))
	require.NoError(t, err)
	require.NotEmpty(t, pos.ID)

	bal, err := ledger.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 95000, bal.Cash, 1e-9)
	assert.InDelta(t, 100000, bal.StartingCapital, 1e-9)

	got, err := ledger.Get(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", got.Ticker)
	assert.Equal(t, domain.PositionStatusOpen, got.Status)
	assert.Equal(t, 50, got.Shares)
	assert.True(t, got.EntryDate.Equal(testDate(2025, 3, 3)))

	closed, err := ledger.Close(ctx, pos.ID, testDate(2025, 3, 10), 120, domain.ExitReasonTarget)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, closed.Status)
	require.NotNil(t, closed.ReturnPct)
	assert.InDelta(t, 20, *closed.ReturnPct, 1e-9)
	require.NotNil(t, closed.DaysHeld)
	assert.Equal(t, 7, *closed.DaysHeld)

	bal, err = ledger.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 101000, bal.Cash, 1e-9)

	// Round-trips through the database keep the computed fields.
	reloaded, err := ledger.Get(ctx, pos.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.RMultiple)
	assert.InDelta(t, 20.0/(100*0.07), *reloaded.RMultiple, 1e-9)
	assert.Equal(t, domain.ExitReasonTarget, reloaded.ExitReason)

	_, err = ledger.Close(ctx, pos.ID, testDate(2025, 3, 11), 121, domain.ExitReasonManual)
	assert.ErrorIs(t, err, domain.ErrPositionClosed)
}

func TestLedger_OpenGuards(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ledger, err := NewLedger(ctx, client.Pool(), 10000)
	require.NoError(t, err)

	// Validation failures never touch cash.
	bad := newTestPosition("NVDA", 100, 10)
	bad.StopPrice = 101
	_, err = ledger.Open(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)

	_, err = ledger.Open(ctx, newTestPosition("NVDA", 100, 200))
	assert.ErrorIs(t, err, domain.ErrInsufficientCash)

	bal, err := ledger.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000, bal.Cash, 1e-9)

	// The partial unique index rejects a second open position per ticker.
	_, err = ledger.Open(ctx, newTestPosition("NVDA", 100, 10))
	require.NoError(t, err)
	_, err = ledger.Open(ctx, newTestPosition("NVDA", 90, 5))
	assert.ErrorIs(t, err, domain.ErrDuplicateTicker)

	bal, err = ledger.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9000, bal.Cash, 1e-9)
}

func TestLedger_UpdateStop(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ledger, err := NewLedger(ctx, client.Pool(), 100000)
	require.NoError(t, err)

	pos, err := ledger.Open(ctx, newTestPosition("AMD", 100, 10))
	require.NoError(t, err)

	got, err := ledger.UpdateStop(ctx, pos.ID, 100, domain.StopTypeBreakeven, 106)
	require.NoError(t, err)
	assert.InDelta(t, 100, got.StopPrice, 1e-9)
	assert.Equal(t, domain.StopTypeBreakeven, got.StopType)
	assert.InDelta(t, 106, got.HighestPrice, 1e-9)

	_, err = ledger.UpdateStop(ctx, pos.ID, 99, domain.StopTypeBreakeven, 106)
	assert.ErrorIs(t, err, domain.ErrStopDecrease)

	// Highest price never ratchets down.
	got, err = ledger.UpdateStop(ctx, pos.ID, 100.8, domain.StopTypeTrailing, 90)
	require.NoError(t, err)
	assert.InDelta(t, 106, got.HighestPrice, 1e-9)

	_, err = ledger.UpdateStop(ctx, "00000000-0000-0000-0000-000000000000", 50, domain.StopTypeFixed, 50)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)

	_, err = ledger.Close(ctx, pos.ID, testDate(2025, 3, 12), 105, domain.ExitReasonManual)
	require.NoError(t, err)
	_, err = ledger.UpdateStop(ctx, pos.ID, 101, domain.StopTypeTrailing, 106)
	assert.ErrorIs(t, err, domain.ErrPositionNotOpen)
}

func TestLedger_Listing(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ledger, err := NewLedger(ctx, client.Pool(), 100000)
	require.NoError(t, err)

	mk := func(ticker string, day int) domain.Position {
		p := newTestPosition(ticker, 10, 1)
		p.EntryDate = testDate(2025, 3, day)
		return p
	}

	a, err := ledger.Open(ctx, mk("AAA", 5))
	require.NoError(t, err)
	_, err = ledger.Open(ctx, mk("BBB", 1))
	require.NoError(t, err)
	_, err = ledger.Open(ctx, mk("CCC", 3))
	require.NoError(t, err)

	open, err := ledger.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "BBB", open[0].Ticker)
	assert.Equal(t, "CCC", open[1].Ticker)
	assert.Equal(t, "AAA", open[2].Ticker)

	n, err := ledger.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	byTicker, err := ledger.GetOpenByTicker(ctx, "CCC")
	require.NoError(t, err)
	assert.Equal(t, "CCC", byTicker.Ticker)

	_, err = ledger.Close(ctx, a.ID, testDate(2025, 3, 20), 12, domain.ExitReasonTarget)
	require.NoError(t, err)

	closedList, err := ledger.ListClosed(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, closedList, 1)
	assert.Equal(t, "AAA", closedList[0].Ticker)

	// AAA is closed, so its ticker is reusable.
	_, err = ledger.Open(ctx, mk("AAA", 21))
	require.NoError(t, err)

	before, err := ledger.ListClosedBefore(ctx, testDate(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, before, 1)

	deleted, err := ledger.DeleteClosedBefore(ctx, testDate(2025, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
