package internal

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/config"
	"github.com/vadiminshakov/asterbot/internal/events"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"github.com/vadiminshakov/asterbot/internal/services/execution"
	"github.com/vadiminshakov/asterbot/internal/services/risk"
	"github.com/vadiminshakov/asterbot/internal/storage/records"
	"go.uber.org/zap"
)

const outcomePanic = "panic"

type cycleRunner interface {
	RunCycle(ctx context.Context) (*execution.CycleReport, error)
}

type riskGate interface {
	RollDay(now time.Time) bool
	Status() risk.Status
}

type leverageSetter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// TradingBot runs the trading cycle for one symbol on a fixed interval.
type TradingBot struct {
	Config config.Config

	logger   *zap.Logger
	cycles   cycleRunner
	gate     riskGate
	leverage leverageSetter
	records  records.Store
	events   *events.Broadcaster
	metrics  *monitor.Metrics
	closers  []func() error
	now      func() time.Time
}

// Events returns the broadcaster every record is published on.
func (b *TradingBot) Events() *events.Broadcaster {
	return b.events
}

// Records returns the record store the bot writes to.
func (b *TradingBot) Records() records.Store {
	return b.records
}

// Status returns the risk gate status.
func (b *TradingBot) Status() risk.Status {
	return b.gate.Status()
}

// ApplyLeverage sets the configured leverage on the exchange. It is a no-op unless trading is enabled.
func (b *TradingBot) ApplyLeverage(ctx context.Context) error {
	if !b.Config.TradingEnabled {
		return nil
	}

	if err := b.leverage.SetLeverage(ctx, b.Config.Symbol, b.Config.Leverage); err != nil {
		return errors.Wrapf(err, "failed to set leverage %dx for %s", b.Config.Leverage, b.Config.Symbol)
	}

	b.logger.Info("leverage set", zap.Int("leverage", b.Config.Leverage))

	return nil
}

// Close releases storage handles.
func (b *TradingBot) Close() error {
	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Run executes one cycle immediately and then one per cycle interval until ctx is done.
// Cycle errors and panics are logged and do not stop the loop.
func (b *TradingBot) Run(ctx context.Context) error {
	status := b.gate.Status()
	b.logger.Info("starting trading loop",
		zap.String("mode", string(status.Mode)),
		zap.Bool("real_trading", status.RealTrading),
		zap.Duration("cycle_interval", b.Config.CycleInterval),
		zap.String("max_daily_loss", status.MaxDailyLoss.String()))

	ticker := time.NewTicker(b.Config.CycleInterval)
	defer ticker.Stop()

	b.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("context done, stopping trading loop")
			return ctx.Err()
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *TradingBot) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	b.gate.RollDay(b.now())

	started := b.now()
	report, err := b.runCycle(ctx)
	took := b.now().Sub(started)

	switch {
	case err == nil:
		b.logger.Info("cycle finished", zap.String("outcome", report.Outcome), zap.Duration("took", took))
	case errors.Is(err, execution.ErrNoMarketData), errors.Is(err, execution.ErrPositionUnknown):
		b.logger.Warn("cycle skipped", zap.Duration("took", took), zap.Error(err))
	default:
		b.logger.Error("cycle failed", zap.Duration("took", took), zap.Error(err))
	}
}

func (b *TradingBot) runCycle(ctx context.Context) (report *execution.CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("cycle panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			b.metrics.ObserveCycle(outcomePanic)
			report, err = nil, fmt.Errorf("cycle panic: %v", r)
		}
	}()

	return b.cycles.RunCycle(ctx)
}
