package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide represents the direction of a trading position.
type PositionSide string

const (
	PositionSideNone  PositionSide = "none"
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PositionStatus tells whether the position read succeeded.
type PositionStatus string

const (
	PositionStatusActive     PositionStatus = "ACTIVE"
	PositionStatusNone       PositionStatus = "NO_POSITION"
	PositionStatusAPIFailure PositionStatus = "API_FAILED"
)

// PositionState is the exchange's view of the position for one symbol, read fresh every cycle.
type PositionState struct {
	Symbol        string
	Side          PositionSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnl decimal.Decimal
	Leverage      int
	Status        PositionStatus
	ReadAt        time.Time
	// Err is set when Status is API_FAILED.
	Err error
}

// NoPosition returns a flat state for symbol.
func NoPosition(symbol string, at time.Time) PositionState {
	return PositionState{
		Symbol: symbol,
		Side:   PositionSideNone,
		Status: PositionStatusNone,
		ReadAt: at,
	}
}

// FailedPosition returns the state reported when the exchange could not be read.
func FailedPosition(symbol string, at time.Time, err error) PositionState {
	return PositionState{
		Symbol: symbol,
		Side:   PositionSideNone,
		Status: PositionStatusAPIFailure,
		ReadAt: at,
		Err:    err,
	}
}

// Known reports whether the state reflects a successful exchange read.
func (p PositionState) Known() bool {
	return p.Status != PositionStatusAPIFailure
}

// IsOpen reports whether a non-zero position exists.
func (p PositionState) IsOpen() bool {
	return p.Status == PositionStatusActive && p.Side != PositionSideNone && p.Size.IsPositive()
}

// PnL calculates profit and loss for the given market price.
func (p PositionState) PnL(currentPrice decimal.Decimal) decimal.Decimal {
	if !p.IsOpen() {
		return decimal.Zero
	}

	// long: (current - entry) * size, short: (entry - current) * size
	if p.Side == PositionSideShort {
		return p.EntryPrice.Sub(currentPrice).Mul(p.Size)
	}

	return currentPrice.Sub(p.EntryPrice).Mul(p.Size)
}
