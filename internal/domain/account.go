package domain

import "github.com/shopspring/decimal"

// AccountInfo is the subset of the futures account response used for account and equity records.
type AccountInfo struct {
	TotalWalletBalance    decimal.Decimal `json:"totalWalletBalance"`
	AvailableBalance      decimal.Decimal `json:"availableBalance"`
	TotalUnrealizedProfit decimal.Decimal `json:"totalUnrealizedProfit"`
	TotalMarginBalance    decimal.Decimal `json:"totalMarginBalance"`
	CanTrade              bool            `json:"canTrade"`
	UpdateTime            int64           `json:"updateTime"`
}

// PositionRisk is one entry of the positionRisk response.
type PositionRisk struct {
	Symbol           string          `json:"symbol"`
	PositionAmt      decimal.Decimal `json:"positionAmt"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	UnRealizedProfit decimal.Decimal `json:"unRealizedProfit"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	Leverage         decimal.Decimal `json:"leverage"`
	MarginType       string          `json:"marginType"`
	PositionSide     string          `json:"positionSide"`
}

// OpenOrder is one entry of the openOrders response.
type OpenOrder struct {
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	ReduceOnly    bool            `json:"reduceOnly"`
	Time          int64           `json:"time"`
}
