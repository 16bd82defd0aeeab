package execution

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/events"
	"go.uber.org/zap"
)

// Record writes are best effort: a failed write is logged and never affects trading.

func (o *Orchestrator) saveAnalysis(ctx context.Context, snapshot *domain.MarketSnapshot, signal domain.Signal, gateDecision string) {
	rec := domain.AnalysisRecord{
		Timestamp:    o.now(),
		Symbol:       o.cfg.Symbol,
		Signal:       signal.Direction,
		Confidence:   signal.Confidence,
		Reason:       signal.Reason,
		Price:        snapshot.Price(),
		StopLoss:     signal.StopLoss,
		TakeProfit:   signal.TakeProfit,
		Technical:    snapshot.Indicators,
		Fallback:     signal.Fallback,
		GateDecision: gateDecision,
	}

	o.logWrite(domain.RecordAnalysis, o.store().SaveAnalysis(ctx, rec))
	o.publish(events.EventSignal, rec)
}

func (o *Orchestrator) savePosition(ctx context.Context, position domain.PositionState, price decimal.Decimal) {
	rec := domain.PositionRecord{
		Timestamp:     o.now(),
		Symbol:        o.cfg.Symbol,
		Side:          position.Side,
		Size:          position.Size,
		EntryPrice:    position.EntryPrice,
		CurrentPrice:  price,
		UnrealizedPnl: position.UnrealizedPnl,
		Leverage:      o.cfg.Leverage,
		Exchange:      o.cfg.Exchange,
		Status:        position.Status,
	}
	if position.Leverage > 0 {
		rec.Leverage = position.Leverage
	}

	o.logWrite(domain.RecordPosition, o.store().SavePosition(ctx, rec))
	o.publish(events.EventPosition, rec)
}

// recordCycle stores the resulting position, the account and equity snapshot and the trade actions.
func (o *Orchestrator) recordCycle(ctx context.Context, report *CycleReport, snapshot *domain.MarketSnapshot, before domain.PositionState) {
	after := before
	if len(report.Legs) > 0 {
		after = o.deps.Reconciler.GetCurrentPosition(ctx, o.cfg.Symbol)
	}
	o.savePosition(ctx, after, snapshot.Price())

	o.saveAccount(ctx)

	if report.Signal.Direction == domain.DirectionHold {
		return
	}

	if len(report.Legs) == 0 {
		o.saveTradeAction(ctx, domain.TradeActionRecord{
			ActionType:  report.Plan.String(),
			Side:        directionSide(report.Signal.Direction),
			Quantity:    o.cfg.PositionSize,
			IsSimulated: true,
		}, report, before)
		return
	}

	for _, leg := range report.Legs {
		rec := domain.TradeActionRecord{
			ActionType: leg.Action.String(),
			Side:       leg.Request.Side,
			Quantity:   leg.Request.Quantity,
		}
		if leg.Action.IsClose() {
			rec.PnL = before.UnrealizedPnl
		}
		if leg.Result != nil {
			rec.OrderID = leg.Result.OrderID
			rec.ClientOrderID = leg.Result.ClientOrderID
		} else {
			rec.ClientOrderID = leg.Request.ClientOrderID
		}
		if leg.Err != nil {
			rec.Error = leg.Err.Error()
		}

		o.saveTradeAction(ctx, rec, report, before)
	}
}

func (o *Orchestrator) saveTradeAction(ctx context.Context, rec domain.TradeActionRecord, report *CycleReport, before domain.PositionState) {
	rec.Timestamp = o.now()
	rec.Symbol = o.cfg.Symbol
	rec.Price = report.Price
	rec.Exchange = o.cfg.Exchange
	rec.Signal = report.Signal.Direction
	rec.Confidence = report.Signal.Confidence
	rec.PositionStatus = before.Status

	o.logWrite(domain.RecordTradeAction, o.store().SaveTradeAction(ctx, rec))
	o.publish(events.EventTrading, rec)
}

func (o *Orchestrator) saveAccount(ctx context.Context) {
	info, err := o.deps.Gateway.GetAccountInfo(ctx)
	if err != nil {
		o.logger.Warn("account info unavailable, account record skipped", zap.Error(err))
		return
	}

	now := o.now()
	account := domain.AccountRecord{
		Timestamp:        now,
		TotalBalance:     info.TotalWalletBalance,
		AvailableBalance: info.AvailableBalance,
		UnrealizedPnl:    info.TotalUnrealizedProfit,
		MarginBalance:    info.TotalMarginBalance,
		Exchange:         o.cfg.Exchange,
		Symbol:           o.cfg.Symbol,
		Leverage:         o.cfg.Leverage,
	}
	o.logWrite(domain.RecordAccount, o.store().SaveAccount(ctx, account))
	o.publish(events.EventAccount, account)

	equity := domain.EquityRecord{
		Timestamp: now,
		Equity:    info.TotalMarginBalance,
		TotalPnl:  info.TotalUnrealizedProfit,
		DailyPnl:  o.deps.Gate.State().DailyLossAccumulated.Neg(),
	}
	o.logWrite(domain.RecordEquity, o.store().SaveEquity(ctx, equity))
	o.publish(events.EventEquity, equity)
}

func (o *Orchestrator) logWrite(kind domain.RecordKind, err error) {
	if err != nil {
		o.logger.Warn("failed to save record", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (o *Orchestrator) publish(name string, data any) {
	if o.deps.Events != nil {
		o.deps.Events.Publish(name, data)
	}
}

func (o *Orchestrator) store() recordStore {
	if o.deps.Store == nil {
		return discardStore{}
	}

	return o.deps.Store
}

func directionSide(d domain.Direction) domain.OrderSide {
	if d == domain.DirectionSell {
		return domain.OrderSideSell
	}

	return domain.OrderSideBuy
}

type discardStore struct{}

func (discardStore) SaveAnalysis(context.Context, domain.AnalysisRecord) error       { return nil }
func (discardStore) SaveTradeAction(context.Context, domain.TradeActionRecord) error { return nil }
func (discardStore) SavePosition(context.Context, domain.PositionRecord) error       { return nil }
func (discardStore) SaveAccount(context.Context, domain.AccountRecord) error         { return nil }
func (discardStore) SaveEquity(context.Context, domain.EquityRecord) error           { return nil }
