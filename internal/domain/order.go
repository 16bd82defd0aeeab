package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSide is the exchange order side.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the side that reduces a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}

	return OrderSideBuy
}

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// PositionSideBoth is the one-way mode position side the venue expects by default.
const PositionSideBoth = "BOTH"

// TimeInForceGTC is applied to LIMIT orders that do not set a time in force.
const TimeInForceGTC = "GTC"

// OrderRequest is a single order ready to be signed and sent.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.NullDecimal
	PositionSide  string
	ReduceOnly    bool
	StopPrice     decimal.NullDecimal
	TimeInForce   string
	ClientOrderID string
}

// NewMarketOrder builds a MARKET order.
func NewMarketOrder(symbol string, side OrderSide, quantity decimal.Decimal) OrderRequest {
	return OrderRequest{
		Symbol:        strings.ToUpper(symbol),
		Side:          side,
		Type:          OrderTypeMarket,
		Quantity:      quantity,
		PositionSide:  PositionSideBoth,
		ClientOrderID: newClientOrderID(),
	}
}

// NewLimitOrder builds a GTC LIMIT order.
func NewLimitOrder(symbol string, side OrderSide, quantity, price decimal.Decimal) OrderRequest {
	req := NewMarketOrder(symbol, side, quantity)
	req.Type = OrderTypeLimit
	req.Price = decimal.NewNullDecimal(price)
	req.TimeInForce = TimeInForceGTC

	return req
}

// NewCloseOrder builds the reduce-only MARKET order that flattens a position of the given side and size.
func NewCloseOrder(symbol string, position PositionSide, size decimal.Decimal) OrderRequest {
	side := OrderSideSell
	if position == PositionSideShort {
		side = OrderSideBuy
	}

	req := NewMarketOrder(symbol, side, size.Abs())
	req.ReduceOnly = true

	return req
}

// Validate checks the request for errors that no exchange round trip could fix.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return NewValidationError("symbol", "must not be empty")
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return NewValidationError("side", "must be BUY or SELL")
	}
	if !r.Quantity.IsPositive() {
		return NewValidationError("quantity", "must be greater than zero")
	}

	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if !r.Price.Valid || !r.Price.Decimal.IsPositive() {
			return NewValidationError("price", "LIMIT order requires a positive price")
		}
	default:
		return NewValidationError("type", "must be MARKET or LIMIT")
	}

	return nil
}

func newClientOrderID() string {
	return "ab" + strings.ReplaceAll(uuid.NewString(), "-", "")[:30]
}

// OrderResult is the subset of the exchange order response the bot relies on.
type OrderResult struct {
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Status        string          `json:"status"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	PositionSide  string          `json:"positionSide"`
	ReduceOnly    bool            `json:"reduceOnly"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	Price         decimal.Decimal `json:"price"`
	UpdateTime    int64           `json:"updateTime"`
}

// SignedEnvelope is everything the exchange needs to authenticate one request.
type SignedEnvelope struct {
	// Params are the request parameters in wire form, signature fields included.
	Params      map[string]string
	RecvWindow  int64
	TimestampMs int64
	Nonce       uint64
	User        string
	Signer      string
	Signature   string
	// Message is the hex keccak hash that was signed.
	Message string
	// Canonical is the JSON string the hash was computed over.
	Canonical string
}
