package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

// HyperliquidKlineProvider implements KlineProvider for Hyperliquid perpetuals.
type HyperliquidKlineProvider struct {
	info *hyperliquid.Info
	now  func() time.Time
}

// NewHyperliquidKlineProvider creates a new Hyperliquid kline provider.
func NewHyperliquidKlineProvider(info *hyperliquid.Info) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info, now: time.Now}
}

// GetKlines fetches kline data. Hyperliquid keys markets by coin, so the base asset
// of symbol is used ("BTCUSDT" -> "BTC").
func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.MarketCandle, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	dur, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	pair, err := domain.ParsePair(symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive coin from %s", symbol)
	}
	coin := pair.From

	endMs := p.now().UnixMilli()
	// two extra candles of slack for boundary rounding
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	candles, err := p.info.CandlesSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles from hyperliquid for %s", coin)
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("no candles from hyperliquid for %s %s", coin, interval)
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, len(candles))
	for i, c := range candles {
		out[i], err = ohlcv{c.Open, c.High, c.Low, c.Close, c.Volume}.candle(time.UnixMilli(c.TimeOpen), time.UnixMilli(c.TimeClose))
		if err != nil {
			return nil, errors.Wrapf(err, "hyperliquid candle %d", i)
		}
	}

	return out, nil
}
