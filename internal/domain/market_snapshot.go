package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketCandle represents a single OHLCV candle.
type MarketCandle struct {
	OpenTime  time.Time       `json:"open_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	CloseTime time.Time       `json:"close_time"`
}

// Indicators holds indicator values aligned to one candle.
type Indicators struct {
	SMA5          float64 `json:"sma_5"`
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	RSI14         float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BBUpper       float64 `json:"bb_upper"`
	BBMiddle      float64 `json:"bb_middle"`
	BBLower       float64 `json:"bb_lower"`
	ATR14         float64 `json:"atr"`
}

// MarketSnapshot market data for a single trading decision cycle. Rebuilt every cycle.
type MarketSnapshot struct {
	Symbol   string
	Interval string
	Candles  []MarketCandle
	// Series holds indicators per candle, same length and order as Candles.
	Series []Indicators
	// Indicators are the values for the latest candle.
	Indicators  Indicators
	LatestPrice decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Volume      decimal.Decimal
	// PctChange is the latest close vs the prior close, in percent.
	PctChange decimal.Decimal
	Timestamp time.Time
}

// Price returns the latest close price.
func (s MarketSnapshot) Price() decimal.Decimal {
	return s.LatestPrice
}

// RecentCandles returns up to n most recent candles.
func (s MarketSnapshot) RecentCandles(n int) []MarketCandle {
	if n <= 0 || len(s.Candles) == 0 {
		return nil
	}
	if n > len(s.Candles) {
		n = len(s.Candles)
	}

	return s.Candles[len(s.Candles)-n:]
}
