package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequest_Validate(t *testing.T) {
	qty := decimal.RequireFromString("0.01")

	limitNoPrice := NewMarketOrder("BTCUSDT", OrderSideBuy, qty)
	limitNoPrice.Type = OrderTypeLimit

	tests := []struct {
		name      string
		req       OrderRequest
		wantField string
	}{
		{name: "market ok", req: NewMarketOrder("BTCUSDT", OrderSideBuy, qty)},
		{name: "limit ok", req: NewLimitOrder("BTCUSDT", OrderSideSell, qty, decimal.NewFromInt(65000))},
		{name: "limit without price", req: limitNoPrice, wantField: "price"},
		{name: "zero quantity", req: NewMarketOrder("BTCUSDT", OrderSideBuy, decimal.Zero), wantField: "quantity"},
		{name: "empty symbol", req: NewMarketOrder(" ", OrderSideBuy, qty), wantField: "symbol"},
		{name: "bad side", req: NewMarketOrder("BTCUSDT", OrderSide("HOLD"), qty), wantField: "side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestNewLimitOrderDefaults(t *testing.T) {
	req := NewLimitOrder("ethusdt", OrderSideBuy, decimal.NewFromInt(1), decimal.NewFromInt(3000))

	assert.Equal(t, "ETHUSDT", req.Symbol)
	assert.Equal(t, TimeInForceGTC, req.TimeInForce)
	assert.Equal(t, PositionSideBoth, req.PositionSide)
	assert.NotEmpty(t, req.ClientOrderID)
	assert.LessOrEqual(t, len(req.ClientOrderID), 36)
}

func TestConfidenceRank(t *testing.T) {
	assert.Less(t, ConfidenceLow.Rank(), ConfidenceMedium.Rank())
	assert.Less(t, ConfidenceMedium.Rank(), ConfidenceHigh.Rank())
	assert.Equal(t, 0, Confidence("VERY_HIGH").Rank())

	c, ok := ParseConfidence(" medium ")
	assert.True(t, ok)
	assert.Equal(t, ConfidenceMedium, c)

	_, ok = ParseDirection("STRONG_BUY")
	assert.False(t, ok)
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		input   string
		want    Pair
		wantErr bool
	}{
		{input: "BTCUSDT", want: Pair{From: "BTC", To: "USDT"}},
		{input: "eth_usdc", want: Pair{From: "ETH", To: "USDC"}},
		{input: "SOLUSD", want: Pair{From: "SOL", To: "USD"}},
		{input: "USDT", wantErr: true},
		{input: "", wantErr: true},
		{input: "BTC_", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePair(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.From+tt.want.To, got.Symbol())
		})
	}
}

func TestResolveTradingMode(t *testing.T) {
	assert.Equal(t, TradingModeProduction, ResolveTradingMode(true, true))
	assert.Equal(t, TradingModeLive, ResolveTradingMode(false, true))
	assert.Equal(t, TradingModeSimulation, ResolveTradingMode(false, false))
}

func TestCredentialsRedacted(t *testing.T) {
	c := Credentials{AccountAddress: "0xabc", SignerAddress: "0xdef", PrivateKey: "deadbeef"}
	assert.NotContains(t, c.String(), "deadbeef")
	assert.NotContains(t, c.GoString(), "deadbeef")
}
