package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "data", "trading.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStoreRecentPerKind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ts := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveAnalysis(ctx, domain.AnalysisRecord{
		Timestamp:  ts,
		Symbol:     "BTCUSDT",
		Signal:     domain.DirectionBuy,
		Confidence: domain.ConfidenceHigh,
		Reason:     "breakout",
		Price:      decimal.NewFromInt(50000),
		StopLoss:   decimal.NewFromInt(49000),
		TakeProfit: decimal.NewFromInt(52000),
		Technical:  domain.Indicators{RSI14: 55.5},
	}))
	require.NoError(t, store.SaveTradeAction(ctx, domain.TradeActionRecord{
		Timestamp:      ts,
		ActionType:     "open_long",
		Symbol:         "BTCUSDT",
		Side:           domain.OrderSideBuy,
		Quantity:       decimal.RequireFromString("0.01"),
		Price:          decimal.NewFromInt(50000),
		Exchange:       "ASTER",
		Signal:         domain.DirectionBuy,
		Confidence:     domain.ConfidenceHigh,
		PositionStatus: domain.PositionStatusNone,
		OrderID:        42,
	}))
	require.NoError(t, store.SaveAccount(ctx, domain.AccountRecord{
		Timestamp:    ts,
		TotalBalance: decimal.NewFromInt(1000),
		Exchange:     "ASTER",
		Symbol:       "BTCUSDT",
		Leverage:     5,
	}))
	require.NoError(t, store.SaveEquity(ctx, domain.EquityRecord{Timestamp: ts, Equity: decimal.NewFromInt(1010)}))

	analysis, err := store.Recent(ctx, domain.RecordAnalysis, 10)
	require.NoError(t, err)
	require.Len(t, analysis, 1)
	assert.Equal(t, ts, analysis[0].Timestamp)

	var a domain.AnalysisRecord
	require.NoError(t, analysis[0].Decode(&a))
	assert.Equal(t, domain.DirectionBuy, a.Signal)
	assert.Equal(t, "breakout", a.Reason)
	assert.InDelta(t, 55.5, a.Technical.RSI14, 1e-9)
	assert.True(t, decimal.NewFromInt(52000).Equal(a.TakeProfit))

	trades, err := store.Recent(ctx, domain.RecordTradeAction, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	var tr domain.TradeActionRecord
	require.NoError(t, trades[0].Decode(&tr))
	assert.Equal(t, int64(42), tr.OrderID)
	assert.Equal(t, domain.OrderSideBuy, tr.Side)
	assert.False(t, tr.IsSimulated)

	accounts, err := store.Recent(ctx, domain.RecordAccount, 10)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	equity, err := store.Recent(ctx, domain.RecordEquity, 10)
	require.NoError(t, err)
	require.Len(t, equity, 1)

	_, err = store.Recent(ctx, domain.RecordKind("nope"), 1)
	assert.Error(t, err)
}

func TestStoreCurrentPosition(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	pos, err := store.CurrentPosition(ctx)
	require.NoError(t, err)
	assert.Nil(t, pos)

	for _, side := range []domain.PositionSide{domain.PositionSideLong, domain.PositionSideNone} {
		require.NoError(t, store.SavePosition(ctx, domain.PositionRecord{
			Timestamp: time.Now(),
			Symbol:    "BTCUSDT",
			Side:      side,
			Leverage:  5,
			Exchange:  "ASTER",
			Status:    domain.PositionStatusActive,
		}))
	}

	pos, err = store.CurrentPosition(ctx)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, domain.PositionSideNone, pos.Side)
	assert.Equal(t, 5, pos.Leverage)
}
