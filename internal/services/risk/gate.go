// Package risk decides whether a signal may be traded and tracks the daily loss budget.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"go.uber.org/zap"
)

const (
	ReasonAllowed         = "trade allowed"
	ReasonTradingDisabled = "trading disabled"
	ReasonLowConfidence   = "confidence too low"
)

// StateStore persists RiskState between runs.
type StateStore interface {
	Load() (*domain.RiskState, error)
	Save(state domain.RiskState) error
}

// Limits configures the gate.
type Limits struct {
	TradingEnabled       bool
	Mode                 domain.TradingMode
	Exchange             string
	MinConfidence        domain.Confidence
	MaxDailyLoss         decimal.Decimal
	MaxPositionCount     int
	EmergencyStopEnabled bool
}

// Status is a read-only view of the gate for logs and dashboards.
type Status struct {
	Mode             domain.TradingMode `json:"mode"`
	RealTrading      bool               `json:"real_trading"`
	Exchange         string             `json:"exchange"`
	EmergencyStop    bool               `json:"emergency_stop"`
	Reason           string             `json:"reason,omitempty"`
	DailyLoss        decimal.Decimal    `json:"daily_loss"`
	DailyTradeCount  int                `json:"daily_trade_count"`
	MaxDailyLoss     decimal.Decimal    `json:"max_daily_loss"`
	MaxPositionCount int                `json:"max_position_count"`
}

// Gate is the risk state machine: NORMAL until the daily loss budget is exhausted,
// then BLOCKED until the day rolls over or Reset is called.
type Gate struct {
	limits  Limits
	store   StateStore
	metrics *monitor.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	state domain.RiskState
}

// NewGate creates a gate and restores today's state from store. State saved on an
// earlier day is discarded.
func NewGate(logger *zap.Logger, limits Limits, store StateStore, metrics *monitor.Metrics, now time.Time) (*Gate, error) {
	g := &Gate{
		limits:  limits,
		store:   store,
		metrics: metrics,
		logger:  logger,
		state:   domain.NewRiskState(now),
	}

	if store != nil {
		saved, err := store.Load()
		if err != nil {
			return nil, err
		}
		if saved != nil && saved.Day == g.state.Day {
			g.state = *saved
			logger.Info("restored risk state",
				zap.String("day", saved.Day),
				zap.String("daily_loss", saved.DailyLossAccumulated.String()),
				zap.Int("daily_trades", saved.DailyTradeCount),
				zap.Bool("emergency_stop", saved.EmergencyStopTriggered))
		}
	}

	g.metrics.SetRisk(g.state.EmergencyStopTriggered, g.state.DailyLossAccumulated.InexactFloat64())

	return g, nil
}

// ShouldExecuteTrade reports whether a signal with confidence may be traded, with the reason.
func (g *Gate) ShouldExecuteTrade(confidence domain.Confidence) (bool, string) {
	if !g.limits.TradingEnabled {
		return false, ReasonTradingDisabled
	}

	if confidence.Rank() < g.limits.MinConfidence.Rank() {
		return false, fmt.Sprintf("%s: %s < %s", ReasonLowConfidence, confidence, g.limits.MinConfidence)
	}

	return true, ReasonAllowed
}

// EmergencyStopCheck returns BLOCKED when the stop is latched or the daily loss reached
// the limit. Reaching the limit latches the stop.
func (g *Gate) EmergencyStopCheck() domain.GateState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.EmergencyStopTriggered {
		return domain.GateBlocked
	}

	if g.limits.EmergencyStopEnabled && g.state.DailyLossAccumulated.GreaterThanOrEqual(g.limits.MaxDailyLoss) {
		g.state.EmergencyStopTriggered = true
		g.logger.Error("emergency stop triggered",
			zap.String("daily_loss", g.state.DailyLossAccumulated.String()),
			zap.String("max_daily_loss", g.limits.MaxDailyLoss.String()))
		g.persistLocked()

		return domain.GateBlocked
	}

	return domain.GateNormal
}

// CanOpenPosition reports whether another position fits under the position ceiling.
func (g *Gate) CanOpenPosition(openPositions int) bool {
	return openPositions < g.limits.MaxPositionCount
}

// RecordTrade counts one executed order.
func (g *Gate) RecordTrade() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.DailyTradeCount++
	g.persistLocked()
}

// RecordLoss adds amount to the daily loss. Non-positive amounts are ignored.
func (g *Gate) RecordLoss(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.DailyLossAccumulated = g.state.DailyLossAccumulated.Add(amount)
	g.logger.Warn("loss recorded",
		zap.String("amount", amount.String()),
		zap.String("daily_loss", g.state.DailyLossAccumulated.String()))
	g.persistLocked()
}

// State returns a copy of the counters.
func (g *Gate) State() domain.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

// Reset zeroes the counters and clears the emergency stop.
func (g *Gate) Reset(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = domain.NewRiskState(now)
	g.persistLocked()
}

// RollDay resets the counters when now falls on a later UTC day. It reports whether it did.
func (g *Gate) RollDay(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := domain.DayKey(now)
	if day == g.state.Day {
		return false
	}

	g.logger.Info("new trading day, risk counters reset",
		zap.String("previous_day", g.state.Day),
		zap.String("day", day),
		zap.String("previous_daily_loss", g.state.DailyLossAccumulated.String()))

	g.state = domain.NewRiskState(now)
	g.persistLocked()

	return true
}

// Status returns the current gate status. It does not latch the emergency stop.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	status := Status{
		Mode:             g.limits.Mode,
		RealTrading:      g.limits.TradingEnabled,
		Exchange:         g.limits.Exchange,
		DailyLoss:        g.state.DailyLossAccumulated,
		DailyTradeCount:  g.state.DailyTradeCount,
		MaxDailyLoss:     g.limits.MaxDailyLoss,
		MaxPositionCount: g.limits.MaxPositionCount,
	}

	limitHit := g.limits.EmergencyStopEnabled && g.state.DailyLossAccumulated.GreaterThanOrEqual(g.limits.MaxDailyLoss)
	if g.state.EmergencyStopTriggered || limitHit {
		status.EmergencyStop = true
		status.Reason = fmt.Sprintf("max daily loss reached: %s USDT", g.limits.MaxDailyLoss)
	}

	return status
}

func (g *Gate) persistLocked() {
	g.metrics.SetRisk(g.state.EmergencyStopTriggered, g.state.DailyLossAccumulated.InexactFloat64())

	if g.store == nil {
		return
	}

	if err := g.store.Save(g.state); err != nil {
		g.logger.Error("failed to persist risk state", zap.Error(err))
	}
}
