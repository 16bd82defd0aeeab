package collector

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

// BinanceBaseURL is the Binance USD-M futures host.
const BinanceBaseURL = "https://fapi.binance.com"

// FuturesKlineProvider implements KlineProvider for Binance-compatible futures APIs.
// Aster exposes the same public kline endpoint, so one client type serves both venues.
type FuturesKlineProvider struct {
	client *futures.Client
	venue  string
}

// NewFuturesKlineProvider creates a provider for the futures API at baseURL.
// Klines are public, so no API keys are needed.
func NewFuturesKlineProvider(venue, baseURL string) *FuturesKlineProvider {
	client := binance.NewFuturesClient("", "")
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &FuturesKlineProvider{client: client, venue: venue}
}

// GetKlines fetches kline data.
func (p *FuturesKlineProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.MarketCandle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(strings.ToUpper(symbol)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from %s for %s", p.venue, symbol)
	}

	result := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		result[i], err = ohlcv{k.Open, k.High, k.Low, k.Close, k.Volume}.candle(time.UnixMilli(k.OpenTime), time.UnixMilli(k.CloseTime))
		if err != nil {
			return nil, errors.Wrapf(err, "%s kline %d", p.venue, i)
		}
	}

	return result, nil
}
