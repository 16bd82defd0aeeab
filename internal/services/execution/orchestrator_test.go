package execution

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/events"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"github.com/vadiminshakov/asterbot/internal/services/risk"
	"go.uber.org/zap"
)

const testSymbol = "BTCUSDT"

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	orch       *Orchestrator
	gateway    *mockGateway
	reconciler *mockReconciler
	snapshots  *fakeSnapshots
	gate       *risk.Gate
	records    *memoryRecords
	events     *recordingPublisher
	metrics    *monitor.Metrics
}

func defaultLimits() risk.Limits {
	return risk.Limits{
		TradingEnabled:       true,
		Mode:                 domain.TradingModeLive,
		Exchange:             "aster",
		MinConfidence:        domain.ConfidenceMedium,
		MaxDailyLoss:         decimal.NewFromInt(100),
		MaxPositionCount:     1,
		EmergencyStopEnabled: true,
	}
}

func newHarness(t *testing.T, limits risk.Limits, signal domain.Signal) *harness {
	t.Helper()

	gate, err := risk.NewGate(zap.NewNop(), limits, nil, nil, testNow)
	require.NoError(t, err)

	h := &harness{
		gateway:    &mockGateway{},
		reconciler: &mockReconciler{},
		snapshots: &fakeSnapshots{snapshot: &domain.MarketSnapshot{
			Symbol:      testSymbol,
			LatestPrice: decimal.NewFromInt(50000),
			PctChange:   decimal.RequireFromString("1.5"),
			Timestamp:   testNow,
		}},
		gate:    gate,
		records: &memoryRecords{},
		events:  &recordingPublisher{},
		metrics: monitor.New(),
	}

	h.gateway.On("GetAccountInfo", mock.Anything).Return(&domain.AccountInfo{
		TotalWalletBalance:    decimal.NewFromInt(1000),
		AvailableBalance:      decimal.NewFromInt(900),
		TotalUnrealizedProfit: decimal.NewFromInt(-5),
		TotalMarginBalance:    decimal.NewFromInt(995),
	}, nil).Maybe()

	h.orch = New(zap.NewNop(), Config{
		Symbol:       testSymbol,
		Exchange:     "aster",
		PositionSize: decimal.RequireFromString("0.01"),
		Leverage:     5,
		FlipPause:    time.Millisecond,
	}, Deps{
		Snapshots:  h.snapshots,
		Advisor:    fakeAdvisor{signal: signal},
		Gate:       gate,
		Reconciler: h.reconciler,
		Gateway:    h.gateway,
		Store:      h.records,
		Events:     h.events,
		Metrics:    h.metrics,
	})
	h.orch.now = func() time.Time { return testNow }

	return h
}

func signalOf(direction domain.Direction, confidence domain.Confidence) domain.Signal {
	return domain.Signal{
		Direction:  direction,
		Confidence: confidence,
		Reason:     "test",
		StopLoss:   decimal.NewFromInt(49000),
		TakeProfit: decimal.NewFromInt(51000),
		Timestamp:  testNow,
	}
}

func shortPosition() domain.PositionState {
	return domain.PositionState{
		Symbol:        testSymbol,
		Side:          domain.PositionSideShort,
		Size:          decimal.RequireFromString("0.03"),
		EntryPrice:    decimal.NewFromInt(49000),
		UnrealizedPnl: decimal.NewFromInt(-5),
		Leverage:      5,
		Status:        domain.PositionStatusActive,
		ReadAt:        testNow,
	}
}

func longPosition(size string) domain.PositionState {
	return domain.PositionState{
		Symbol:     testSymbol,
		Side:       domain.PositionSideLong,
		Size:       decimal.RequireFromString(size),
		EntryPrice: decimal.NewFromInt(50000),
		Leverage:   5,
		Status:     domain.PositionStatusActive,
		ReadAt:     testNow,
	}
}

func reduceOnly(want bool) any {
	return mock.MatchedBy(func(req domain.OrderRequest) bool { return req.ReduceOnly == want })
}

func placedOrders(m *mockGateway) []domain.OrderRequest {
	var out []domain.OrderRequest
	for _, call := range m.Calls {
		if call.Method == "PlaceOrder" {
			out = append(out, call.Arguments.Get(1).(domain.OrderRequest))
		}
	}

	return out
}

func TestRunCycleFlipShortToLong(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(shortPosition()).Once()
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(longPosition("0.01")).Once()
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(true)).
		Return(&domain.OrderResult{OrderID: 1, Status: "FILLED"}, nil).Once()
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(false)).
		Return(&domain.OrderResult{OrderID: 2, Status: "FILLED"}, nil).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, report.Outcome)

	orders := placedOrders(h.gateway)
	require.Len(t, orders, 2)

	// the close leg buys back the short at its full size
	assert.Equal(t, domain.OrderSideBuy, orders[0].Side)
	assert.True(t, orders[0].ReduceOnly)
	assert.Equal(t, "0.03", orders[0].Quantity.String())
	assert.Equal(t, domain.OrderTypeMarket, orders[0].Type)

	assert.Equal(t, domain.OrderSideBuy, orders[1].Side)
	assert.False(t, orders[1].ReduceOnly)
	assert.Equal(t, "0.01", orders[1].Quantity.String())

	state := h.gate.State()
	assert.Equal(t, 2, state.DailyTradeCount)
	assert.Equal(t, "5", state.DailyLossAccumulated.String())

	require.Len(t, h.records.actions, 2)
	assert.Equal(t, "close_short", h.records.actions[0].ActionType)
	assert.Equal(t, "-5", h.records.actions[0].PnL.String())
	assert.Equal(t, int64(1), h.records.actions[0].OrderID)
	assert.Equal(t, "open_long", h.records.actions[1].ActionType)
	assert.False(t, h.records.actions[1].IsSimulated)

	require.Len(t, h.records.positions, 1)
	assert.Equal(t, domain.PositionSideLong, h.records.positions[0].Side)
	require.Len(t, h.records.analyses, 1)
	assert.Equal(t, risk.ReasonAllowed, h.records.analyses[0].GateDecision)
	require.Len(t, h.records.equity, 1)
	assert.Equal(t, "995", h.records.equity[0].Equity.String())
	assert.Equal(t, "-5", h.records.equity[0].DailyPnl.String())

	assert.Contains(t, h.events.names, events.EventTrading)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CyclesTotal.WithLabelValues(OutcomeExecuted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.OrdersTotal.WithLabelValues(testSymbol, "BUY", "filled")))

	h.gateway.AssertExpectations(t)
	h.reconciler.AssertExpectations(t)
}

func TestRunCycleFlipStopsAtLossCeiling(t *testing.T) {
	limits := defaultLimits()
	limits.MaxDailyLoss = decimal.NewFromInt(10)
	h := newHarness(t, limits, signalOf(domain.DirectionBuy, domain.ConfidenceHigh))

	short := shortPosition()
	short.UnrealizedPnl = decimal.NewFromInt(-50)
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(short).Once()
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow)).Once()
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(true)).
		Return(&domain.OrderResult{OrderID: 1, Status: "FILLED"}, nil).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, report.Outcome)

	orders := placedOrders(h.gateway)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].ReduceOnly)
	assert.Equal(t, domain.OrderSideBuy, orders[0].Side)
	h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, reduceOnly(false))

	state := h.gate.State()
	assert.True(t, state.EmergencyStopTriggered)
	assert.Equal(t, "50", state.DailyLossAccumulated.String())
	assert.Equal(t, domain.GateBlocked, h.gate.EmergencyStopCheck())

	require.Len(t, h.records.actions, 1)
	assert.Equal(t, "close_short", h.records.actions[0].ActionType)
	require.Len(t, h.records.positions, 1)
	assert.Equal(t, domain.PositionSideNone, h.records.positions[0].Side)

	h.reconciler.AssertExpectations(t)
}

func TestRunCycleFlipRespectsPositionCeiling(t *testing.T) {
	limits := defaultLimits()
	limits.MaxPositionCount = 0
	h := newHarness(t, limits, signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(shortPosition()).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePositionLimit, report.Outcome)
	h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestOpenPositionsBeforeOpen(t *testing.T) {
	flat := domain.NoPosition(testSymbol, testNow)

	assert.Equal(t, 0, openPositionsBeforeOpen(Decide(domain.DirectionBuy, flat.Side), flat))
	assert.Equal(t, 0, openPositionsBeforeOpen(Decide(domain.DirectionBuy, domain.PositionSideShort), shortPosition()))
	assert.Equal(t, 1, openPositionsBeforeOpen(Plan{Open: domain.ActionOpenLong}, longPosition("0.01")))
}

func TestRunCycleFlipLongToShort(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionSell, domain.ConfidenceMedium))

	long := longPosition("0.02")
	long.UnrealizedPnl = decimal.NewFromInt(8)
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(long).Once()
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow)).Once()
	h.gateway.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(&domain.OrderResult{OrderID: 7, Status: "NEW"}, nil).Twice()

	_, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	orders := placedOrders(h.gateway)
	require.Len(t, orders, 2)
	assert.Equal(t, domain.OrderSideSell, orders[0].Side)
	assert.True(t, orders[0].ReduceOnly)
	assert.Equal(t, "0.02", orders[0].Quantity.String())
	assert.Equal(t, domain.OrderSideSell, orders[1].Side)
	assert.False(t, orders[1].ReduceOnly)

	// a profitable close adds nothing to the daily loss
	assert.True(t, h.gate.State().DailyLossAccumulated.IsZero())
}

func TestRunCycleCloseFailureSkipsOpen(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(shortPosition())
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(true)).
		Return(nil, errors.New("insufficient margin")).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentState))
	assert.Equal(t, OutcomeInconsistent, report.Outcome)

	require.Len(t, placedOrders(h.gateway), 1)
	h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, reduceOnly(false))

	// nothing was filled, so neither the trade count nor the loss moved
	state := h.gate.State()
	assert.Zero(t, state.DailyTradeCount)
	assert.True(t, state.DailyLossAccumulated.IsZero())

	require.Len(t, h.records.actions, 1)
	assert.Equal(t, "insufficient margin", h.records.actions[0].Error)
}

func TestRunCycleOpenFailureAfterClose(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(shortPosition()).Once()
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow)).Once()
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(true)).
		Return(&domain.OrderResult{OrderID: 1, Status: "FILLED"}, nil).Once()
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(false)).
		Return(nil, errors.New("rate limited")).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentState))
	assert.Equal(t, OutcomeInconsistent, report.Outcome)
	assert.Len(t, report.Legs, 2)
	assert.Equal(t, 1, h.gate.State().DailyTradeCount)

	require.Len(t, h.records.positions, 1)
	assert.Equal(t, domain.PositionStatusNone, h.records.positions[0].Status)
}

func TestRunCycleOpenFromFlat(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionSell, domain.ConfidenceHigh))

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow)).Once()
	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow)).Once()
	h.gateway.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, errors.New("rejected")).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInconsistentState))
	assert.Equal(t, OutcomeOrderFailed, report.Outcome)

	orders := placedOrders(h.gateway)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderSideSell, orders[0].Side)
	assert.False(t, orders[0].ReduceOnly)
}

func TestRunCycleGated(t *testing.T) {
	t.Run("low confidence", func(t *testing.T) {
		h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceLow))

		report, err := h.orch.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeGated, report.Outcome)

		require.Len(t, h.records.analyses, 1)
		assert.Contains(t, h.records.analyses[0].GateDecision, risk.ReasonLowConfidence)
		assert.Empty(t, h.records.actions)
		assert.Empty(t, h.records.positions)

		h.reconciler.AssertNotCalled(t, "GetCurrentPosition", mock.Anything, mock.Anything)
		h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})

	t.Run("trading disabled", func(t *testing.T) {
		limits := defaultLimits()
		limits.TradingEnabled = false
		h := newHarness(t, limits, signalOf(domain.DirectionSell, domain.ConfidenceHigh))

		report, err := h.orch.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeGated, report.Outcome)

		require.Len(t, h.records.analyses, 1)
		assert.Equal(t, risk.ReasonTradingDisabled, h.records.analyses[0].GateDecision)
		assert.Equal(t, []string{events.EventSignal}, h.events.names)
		h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})
}

func TestRunCycleEmergencyStop(t *testing.T) {
	limits := defaultLimits()
	limits.MaxDailyLoss = decimal.NewFromInt(10)
	h := newHarness(t, limits, signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
	h.gate.RecordLoss(decimal.NewFromInt(12))

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, report.Outcome)
	assert.Zero(t, h.snapshots.builds)
	assert.Empty(t, h.records.analyses)
	assert.True(t, h.gate.State().EmergencyStopTriggered)

	// the stop stays latched for the rest of the day
	_, err = h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.snapshots.builds)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.CyclesTotal.WithLabelValues(OutcomeBlocked)))
}

func TestRunCycleNoMarketData(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
	h.snapshots.snapshot = nil
	h.snapshots.err = errors.New("klines timeout")

	report, err := h.orch.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMarketData))
	assert.Equal(t, OutcomeNoData, report.Outcome)
	assert.Empty(t, h.records.analyses)
	h.reconciler.AssertNotCalled(t, "GetCurrentPosition", mock.Anything, mock.Anything)
}

func TestRunCyclePositionUnknown(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).
		Return(domain.FailedPosition(testSymbol, testNow, errors.New("502 bad gateway"))).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPositionUnknown))
	assert.Equal(t, OutcomePositionUnknown, report.Outcome)

	h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	require.Len(t, h.records.positions, 1)
	assert.Equal(t, domain.PositionStatusAPIFailure, h.records.positions[0].Status)
	assert.Equal(t, 5, h.records.positions[0].Leverage)
}

func TestRunCycleNoOrders(t *testing.T) {
	t.Run("same side position", func(t *testing.T) {
		h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
		h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(longPosition("0.01")).Once()

		report, err := h.orch.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeHold, report.Outcome)
		h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)

		require.Len(t, h.records.actions, 1)
		assert.True(t, h.records.actions[0].IsSimulated)
		assert.Equal(t, "hold", h.records.actions[0].ActionType)
	})

	t.Run("hold signal", func(t *testing.T) {
		h := newHarness(t, defaultLimits(), signalOf(domain.DirectionHold, domain.ConfidenceHigh))
		h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(shortPosition()).Once()

		report, err := h.orch.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeHold, report.Outcome)
		assert.Empty(t, h.records.actions)
		require.Len(t, h.records.positions, 1)
		assert.Equal(t, domain.PositionSideShort, h.records.positions[0].Side)
		h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})

	t.Run("position limit", func(t *testing.T) {
		limits := defaultLimits()
		limits.MaxPositionCount = 0
		h := newHarness(t, limits, signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
		h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow)).Once()

		report, err := h.orch.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomePositionLimit, report.Outcome)
		h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)

		require.Len(t, h.records.actions, 1)
		assert.True(t, h.records.actions[0].IsSimulated)
		assert.Equal(t, domain.OrderSideBuy, h.records.actions[0].Side)
	})
}

func TestRunCycleWithoutStore(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
	h.orch.deps.Store = nil
	h.orch.deps.Events = nil
	h.orch.deps.Metrics = nil

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(domain.NoPosition(testSymbol, testNow))
	h.gateway.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(&domain.OrderResult{OrderID: 3, Status: "FILLED"}, nil).Once()

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, report.Outcome)
}

func TestRunCycleCancelledDuringFlipPause(t *testing.T) {
	h := newHarness(t, defaultLimits(), signalOf(domain.DirectionBuy, domain.ConfidenceHigh))
	h.orch.cfg.FlipPause = time.Hour

	ctx, cancel := context.WithCancel(context.Background())

	h.reconciler.On("GetCurrentPosition", mock.Anything, testSymbol).Return(shortPosition())
	h.gateway.On("PlaceOrder", mock.Anything, reduceOnly(true)).
		Run(func(mock.Arguments) { cancel() }).
		Return(&domain.OrderResult{OrderID: 1, Status: "FILLED"}, nil).Once()

	report, err := h.orch.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentState))
	assert.Len(t, report.Legs, 1)
	h.gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, reduceOnly(false))
}
