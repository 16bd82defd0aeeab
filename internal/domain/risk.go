package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GateState is the risk gate state.
type GateState string

const (
	GateNormal  GateState = "NORMAL"
	GateBlocked GateState = "BLOCKED"
)

// RiskState is the mutable daily risk bookkeeping. One per process, persisted between runs.
type RiskState struct {
	// Day is the UTC date (YYYY-MM-DD) the counters belong to.
	Day                    string          `json:"day"`
	DailyLossAccumulated   decimal.Decimal `json:"daily_loss_accumulated"`
	DailyTradeCount        int             `json:"daily_trade_count"`
	EmergencyStopTriggered bool            `json:"emergency_stop_triggered"`
}

// DayKey formats t as the RiskState day key.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// NewRiskState returns zeroed counters for the day containing t.
func NewRiskState(t time.Time) RiskState {
	return RiskState{Day: DayKey(t)}
}

// TradingMode is how the bot was started.
type TradingMode string

const (
	TradingModeProduction TradingMode = "PRODUCTION"
	TradingModeLive       TradingMode = "LIVE_TRADING"
	TradingModeSimulation TradingMode = "SIMULATION"
)

// ResolveTradingMode derives the mode from the two configuration switches.
func ResolveTradingMode(productionMode, tradingEnabled bool) TradingMode {
	switch {
	case productionMode:
		return TradingModeProduction
	case tradingEnabled:
		return TradingModeLive
	default:
		return TradingModeSimulation
	}
}
