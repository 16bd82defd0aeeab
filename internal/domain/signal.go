package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the advisor's trade direction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// ParseDirection accepts BUY, SELL or HOLD in any case.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case DirectionBuy, DirectionSell, DirectionHold:
		return d, true
	}

	return "", false
}

// Confidence is the advisor's confidence level.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// ParseConfidence accepts LOW, MEDIUM or HIGH in any case.
func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(strings.ToUpper(strings.TrimSpace(s))); c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c, true
	}

	return "", false
}

// Rank orders confidence levels: LOW=1, MEDIUM=2, HIGH=3, anything else 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// Signal is one advisor output. Produced once per cycle.
type Signal struct {
	Direction  Direction       `json:"signal"`
	Confidence Confidence      `json:"confidence"`
	Reason     string          `json:"reason"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Timestamp  time.Time       `json:"timestamp"`
	// Fallback is set when the advisor could not produce a signal and returned the conservative default.
	Fallback bool `json:"fallback,omitempty"`
}
