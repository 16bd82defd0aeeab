// Package collector fetches klines from an exchange and turns them into the
// market snapshot consumed by the signal advisor.
package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/services/market/indicators"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the candle width used by the trading cycle.
	DefaultInterval = "15m"
	// DefaultLimit is the number of candles per snapshot (24h of 15m candles).
	DefaultLimit = 96

	minCandles   = 2
	fetchTimeout = 30 * time.Second
)

// ErrInsufficientData is returned when the provider returned fewer than two candles.
var ErrInsufficientData = errors.New("insufficient kline data")

// KlineProvider defines the interface for fetching kline (candlestick) data
type KlineProvider interface {
	// GetKlines fetches the most recent limit klines for symbol, oldest first.
	// interval uses the "15m", "1h", "4h" notation.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.MarketCandle, error)
}

// SnapshotBuilder builds a MarketSnapshot per cycle. It never returns a partial snapshot.
type SnapshotBuilder struct {
	provider KlineProvider
	symbol   string
	interval string
	limit    int
	logger   *zap.Logger
	now      func() time.Time
}

// NewSnapshotBuilder creates a builder. Empty interval and non-positive limit fall back to 15m x 96.
func NewSnapshotBuilder(logger *zap.Logger, provider KlineProvider, symbol, interval string, limit int) *SnapshotBuilder {
	if interval == "" {
		interval = DefaultInterval
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	return &SnapshotBuilder{
		provider: provider,
		symbol:   symbol,
		interval: interval,
		limit:    limit,
		logger:   logger,
		now:      time.Now,
	}
}

// Build fetches candles and derives indicators and summary prices.
func (b *SnapshotBuilder) Build(ctx context.Context) (*domain.MarketSnapshot, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	candles, err := b.provider.GetKlines(ctxWithTimeout, b.symbol, b.interval, b.limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines for %s %s", b.symbol, b.interval)
	}

	if len(candles) < minCandles {
		return nil, errors.Wrapf(ErrInsufficientData, "got %d candles for %s %s", len(candles), b.symbol, b.interval)
	}

	series, err := indicators.Calculate(candles)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to calculate indicators for %s", b.symbol)
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	pctChange := decimal.Zero
	if !prev.Close.IsZero() {
		pctChange = last.Close.Sub(prev.Close).Div(prev.Close).Mul(decimal.NewFromInt(100))
	}

	snapshot := &domain.MarketSnapshot{
		Symbol:      b.symbol,
		Interval:    b.interval,
		Candles:     candles,
		Series:      series,
		Indicators:  series[len(series)-1],
		LatestPrice: last.Close,
		High:        last.High,
		Low:         last.Low,
		Volume:      last.Volume,
		PctChange:   pctChange,
		Timestamp:   b.now(),
	}

	b.logger.Debug("market snapshot built",
		zap.String("symbol", b.symbol),
		zap.Int("candles", len(candles)),
		zap.String("price", snapshot.LatestPrice.String()),
		zap.Float64("rsi", snapshot.Indicators.RSI14),
	)

	return snapshot, nil
}
