package collector

import (
	"context"
	"sort"
	"strings"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

const bybitMaxPerRequest = 1000

// BybitKlineProvider implements KlineProvider for Bybit linear perpetuals.
type BybitKlineProvider struct {
	client *bybit.Client
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client}
}

// GetKlines fetches kline data. Bybit returns newest first; the result is sorted oldest first.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > bybitMaxPerRequest {
		limit = bybitMaxPerRequest
	}

	byInterval, err := bybitInterval(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	param := bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Linear,
		Symbol:   bybit.SymbolV5(strings.ToUpper(symbol)),
		Interval: bybit.Interval(byInterval),
		Limit:    &limit,
	}

	result, err := p.client.V5().Market().GetKline(param)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", symbol)
	}
	if result == nil {
		return nil, errors.Errorf("empty result from Bybit API for %s", symbol)
	}

	klines := result.Result.List
	if len(klines) == 0 {
		return nil, errors.Errorf("no kline data returned from Bybit for %s", symbol)
	}

	candles := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		openTime, err := parseMillis(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline %d", i)
		}

		// bybit does not report close time
		candles[i], err = ohlcv{k.Open, k.High, k.Low, k.Close, k.Volume}.candle(openTime, openTime)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline %d", i)
		}
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	return candles, nil
}
