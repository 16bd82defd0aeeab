// Package execution runs one trading cycle: snapshot, signal, risk gate, position
// reconciliation, orders and records.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"go.uber.org/zap"
)

// DefaultFlipPause separates the close and open legs of a flip.
const DefaultFlipPause = time.Second

// Cycle outcomes, also used as metric labels.
const (
	OutcomeBlocked         = "blocked"
	OutcomeNoData          = "no_data"
	OutcomeGated           = "gated"
	OutcomePositionUnknown = "position_unknown"
	OutcomeHold            = "hold"
	OutcomePositionLimit   = "position_limit"
	OutcomeExecuted        = "executed"
	OutcomeOrderFailed     = "order_failed"
	OutcomeInconsistent    = "inconsistent"
)

type snapshotBuilder interface {
	Build(ctx context.Context) (*domain.MarketSnapshot, error)
}

type signalAdvisor interface {
	Advise(ctx context.Context, snapshot *domain.MarketSnapshot) domain.Signal
}

type riskGate interface {
	EmergencyStopCheck() domain.GateState
	ShouldExecuteTrade(confidence domain.Confidence) (bool, string)
	CanOpenPosition(openPositions int) bool
	RecordTrade()
	RecordLoss(amount decimal.Decimal)
	State() domain.RiskState
}

type positionReconciler interface {
	GetCurrentPosition(ctx context.Context, symbol string) domain.PositionState
}

type orderGateway interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
	GetAccountInfo(ctx context.Context) (*domain.AccountInfo, error)
}

type recordStore interface {
	SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error
	SaveTradeAction(ctx context.Context, rec domain.TradeActionRecord) error
	SavePosition(ctx context.Context, rec domain.PositionRecord) error
	SaveAccount(ctx context.Context, rec domain.AccountRecord) error
	SaveEquity(ctx context.Context, rec domain.EquityRecord) error
}

type publisher interface {
	Publish(name string, data any)
}

// Config holds the per-symbol execution settings.
type Config struct {
	Symbol       string
	Exchange     string
	PositionSize decimal.Decimal
	Leverage     int
	FlipPause    time.Duration
}

// Deps groups the collaborators of the orchestrator.
type Deps struct {
	Snapshots  snapshotBuilder
	Advisor    signalAdvisor
	Gate       riskGate
	Reconciler positionReconciler
	Gateway    orderGateway
	Store      recordStore
	Events     publisher
	Metrics    *monitor.Metrics
}

// LegResult is the outcome of one order leg.
type LegResult struct {
	Action  domain.Action
	Request domain.OrderRequest
	Result  *domain.OrderResult
	Err     error
}

// CycleReport summarises one RunCycle call.
type CycleReport struct {
	Outcome  string
	Price    decimal.Decimal
	Signal   domain.Signal
	Position domain.PositionState
	Plan     Plan
	Legs     []LegResult
}

// Orchestrator runs trading cycles. Calls must not overlap.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// New creates an orchestrator.
func New(logger *zap.Logger, cfg Config, deps Deps) *Orchestrator {
	if cfg.FlipPause <= 0 {
		cfg.FlipPause = DefaultFlipPause
	}

	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(zap.String("symbol", cfg.Symbol)),
		now:    time.Now,
	}
}

// RunCycle executes one cycle. The returned error wraps ErrNoMarketData, ErrPositionUnknown
// or ErrInconsistentState, or reports a failed order from a flat position.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{}

	if o.deps.Gate.EmergencyStopCheck() == domain.GateBlocked {
		o.logger.Warn("emergency stop active, cycle skipped",
			zap.String("daily_loss", o.deps.Gate.State().DailyLossAccumulated.String()))
		return o.finish(report, OutcomeBlocked, nil)
	}

	snapshot, err := o.deps.Snapshots.Build(ctx)
	if err != nil {
		return o.finish(report, OutcomeNoData, fmt.Errorf("%w: %w", ErrNoMarketData, err))
	}
	report.Price = snapshot.Price()

	signal := o.deps.Advisor.Advise(ctx, snapshot)
	report.Signal = signal

	o.logger.Info("market analysis",
		zap.String("price", snapshot.Price().StringFixed(2)),
		zap.String("change_pct", snapshot.PctChange.StringFixed(2)),
		zap.String("signal", string(signal.Direction)),
		zap.String("confidence", string(signal.Confidence)),
		zap.Bool("fallback", signal.Fallback))

	allowed, reason := o.deps.Gate.ShouldExecuteTrade(signal.Confidence)
	if !allowed {
		o.logger.Info("trade not allowed", zap.String("reason", reason))
		o.saveAnalysis(ctx, snapshot, signal, reason)
		return o.finish(report, OutcomeGated, nil)
	}

	o.saveAnalysis(ctx, snapshot, signal, reason)

	position := o.deps.Reconciler.GetCurrentPosition(ctx, o.cfg.Symbol)
	report.Position = position
	if !position.Known() {
		o.savePosition(ctx, position, snapshot.Price())
		return o.finish(report, OutcomePositionUnknown, fmt.Errorf("%w: %w", ErrPositionUnknown, position.Err))
	}

	plan := Decide(signal.Direction, position.Side)
	report.Plan = plan

	o.logger.Info("trade decision",
		zap.String("plan", plan.String()),
		zap.String("position_side", string(position.Side)),
		zap.String("position_size", position.Size.String()))

	outcome, execErr := o.execute(ctx, report, plan, position)

	o.recordCycle(ctx, report, snapshot, position)

	return o.finish(report, outcome, execErr)
}

// execute sends the plan's legs. It returns the cycle outcome and error.
func (o *Orchestrator) execute(ctx context.Context, report *CycleReport, plan Plan, position domain.PositionState) (string, error) {
	if plan.IsHold() {
		return OutcomeHold, nil
	}

	if !o.deps.Gate.CanOpenPosition(openPositionsBeforeOpen(plan, position)) {
		o.logger.Warn("position limit reached, open skipped", zap.String("action", plan.Open.String()))
		return OutcomePositionLimit, nil
	}

	if plan.Close != domain.ActionHold {
		leg := o.placeLeg(ctx, plan.Close, domain.NewCloseOrder(o.cfg.Symbol, position.Side, position.Size))
		report.Legs = append(report.Legs, leg)
		if leg.Err != nil {
			return OutcomeInconsistent, errors.Wrapf(ErrInconsistentState, "%s failed, %s not attempted: %v",
				plan.Close, plan.Open, leg.Err)
		}

		if position.UnrealizedPnl.IsNegative() {
			o.deps.Gate.RecordLoss(position.UnrealizedPnl.Neg())
		}

		// the realized loss may have crossed the daily ceiling
		if o.deps.Gate.EmergencyStopCheck() == domain.GateBlocked {
			o.logger.Warn("daily loss limit reached after close, open skipped",
				zap.String("close", plan.Close.String()),
				zap.String("open", plan.Open.String()))
			return OutcomeBlocked, nil
		}

		if err := sleepCtx(ctx, o.cfg.FlipPause); err != nil {
			return OutcomeInconsistent, errors.Wrapf(ErrInconsistentState, "%s done, %s interrupted: %v",
				plan.Close, plan.Open, err)
		}
	}

	leg := o.placeLeg(ctx, plan.Open, domain.NewMarketOrder(o.cfg.Symbol, plan.Open.OrderSide(), o.cfg.PositionSize))
	report.Legs = append(report.Legs, leg)
	if leg.Err != nil {
		if plan.IsFlip() {
			return OutcomeInconsistent, errors.Wrapf(ErrInconsistentState, "%s done, %s failed: %v",
				plan.Close, plan.Open, leg.Err)
		}

		return OutcomeOrderFailed, errors.Wrapf(leg.Err, "%s failed", plan.Open)
	}

	return OutcomeExecuted, nil
}

// openPositionsBeforeOpen counts the positions held once the close leg, if any, is done.
func openPositionsBeforeOpen(plan Plan, position domain.PositionState) int {
	if !position.IsOpen() || plan.IsFlip() {
		return 0
	}

	return 1
}

func (o *Orchestrator) placeLeg(ctx context.Context, action domain.Action, req domain.OrderRequest) LegResult {
	leg := LegResult{Action: action, Request: req}

	leg.Result, leg.Err = o.deps.Gateway.PlaceOrder(ctx, req)
	o.deps.Metrics.ObserveOrder(req.Symbol, string(req.Side), leg.Err)

	if leg.Err != nil {
		o.logger.Error("order failed",
			zap.String("action", action.String()),
			zap.String("side", string(req.Side)),
			zap.String("quantity", req.Quantity.String()),
			zap.Bool("reduce_only", req.ReduceOnly),
			zap.Error(leg.Err))
		return leg
	}

	o.deps.Gate.RecordTrade()

	o.logger.Info("order placed",
		zap.String("action", action.String()),
		zap.String("side", string(req.Side)),
		zap.String("quantity", req.Quantity.String()),
		zap.Bool("reduce_only", req.ReduceOnly),
		zap.Int64("order_id", leg.Result.OrderID),
		zap.String("status", leg.Result.Status))

	return leg
}

func (o *Orchestrator) finish(report *CycleReport, outcome string, err error) (*CycleReport, error) {
	report.Outcome = outcome
	o.deps.Metrics.ObserveCycle(outcome)

	return report, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
