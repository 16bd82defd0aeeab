package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RecordKind names one of the persisted record streams.
type RecordKind string

const (
	RecordAnalysis    RecordKind = "ai_analysis"
	RecordTradeAction RecordKind = "trading_actions"
	RecordPosition    RecordKind = "positions"
	RecordAccount     RecordKind = "accounts"
	RecordEquity      RecordKind = "equity_history"
)

// RecordKinds lists every kind in a stable order.
var RecordKinds = []RecordKind{RecordAnalysis, RecordTradeAction, RecordPosition, RecordAccount, RecordEquity}

// Valid reports whether k is one of RecordKinds.
func (k RecordKind) Valid() bool {
	for _, known := range RecordKinds {
		if k == known {
			return true
		}
	}

	return false
}

// AnalysisRecord is one advisor decision.
type AnalysisRecord struct {
	Timestamp    time.Time       `json:"timestamp"`
	Symbol       string          `json:"symbol"`
	Signal       Direction       `json:"signal"`
	Confidence   Confidence      `json:"confidence"`
	Reason       string          `json:"reason"`
	Price        decimal.Decimal `json:"price"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	TakeProfit   decimal.Decimal `json:"take_profit"`
	Technical    Indicators      `json:"technical_data"`
	Fallback     bool            `json:"fallback,omitempty"`
	GateDecision string          `json:"gate_decision,omitempty"`
}

// TradeActionRecord is one trade decision, executed or simulated.
type TradeActionRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	ActionType     string          `json:"action_type"`
	Symbol         string          `json:"symbol"`
	Side           OrderSide       `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	PnL            decimal.Decimal `json:"pnl"`
	Exchange       string          `json:"exchange"`
	Signal         Direction       `json:"signal"`
	Confidence     Confidence      `json:"confidence"`
	IsSimulated    bool            `json:"is_simulated"`
	PositionStatus PositionStatus  `json:"position_status"`
	OrderID        int64           `json:"order_id,omitempty"`
	ClientOrderID  string          `json:"client_order_id,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// PositionRecord is the position snapshot taken during a cycle.
type PositionRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol"`
	Side          PositionSide    `json:"side"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	Leverage      int             `json:"leverage"`
	Exchange      string          `json:"exchange"`
	Status        PositionStatus  `json:"status"`
}

// AccountRecord is an account balance snapshot.
type AccountRecord struct {
	Timestamp        time.Time       `json:"timestamp"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	UnrealizedPnl    decimal.Decimal `json:"unrealized_pnl"`
	MarginBalance    decimal.Decimal `json:"margin_balance"`
	Exchange         string          `json:"exchange"`
	Symbol           string          `json:"symbol"`
	Leverage         int             `json:"leverage"`
}

// EquityRecord is one point of the equity curve.
type EquityRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
	TotalPnl  decimal.Decimal `json:"total_pnl"`
	DailyPnl  decimal.Decimal `json:"daily_pnl"`
}

// StoredRecord is a record read back from a store with its position in the stream.
type StoredRecord struct {
	Index     uint64          `json:"index"`
	Kind      RecordKind      `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (r StoredRecord) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return errors.Wrapf(err, "decode %s record", r.Kind)
	}

	return nil
}
