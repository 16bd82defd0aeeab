package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitMarketClient returns an unauthenticated Bybit client; kline endpoints are public.
func NewBybitMarketClient() *bybit.Client {
	return bybit.NewClient()
}
