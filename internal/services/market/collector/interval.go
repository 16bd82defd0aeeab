package collector

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

// splitInterval splits "15m" into 15 and 'm'.
func splitInterval(interval string) (int64, byte, error) {
	if len(interval) < 2 {
		return 0, 0, errors.Errorf("invalid interval: %q", interval)
	}

	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n < 1 {
		return 0, 0, errors.Errorf("invalid interval number: %q", interval)
	}

	return n, interval[len(interval)-1], nil
}

func intervalDuration(interval string) (time.Duration, error) {
	n, unit, err := splitInterval(interval)
	if err != nil {
		return 0, err
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// bybitInterval maps "1m".."4h" to minutes and "1d"/"1w" to D/W.
func bybitInterval(interval string) (string, error) {
	n, unit, err := splitInterval(interval)
	if err != nil {
		return "", err
	}

	switch unit {
	case 'm':
		return strconv.FormatInt(n, 10), nil
	case 'h':
		return strconv.FormatInt(n*60, 10), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", errors.Errorf("unsupported interval unit: %c", unit)
	}
}

func parseMillis(ts string) (time.Time, error) {
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid millisecond timestamp %q", ts)
	}

	return time.UnixMilli(ms), nil
}

// ohlcv is a candle as exchanges return it, prices as strings.
type ohlcv struct {
	Open, High, Low, Close, Volume string
}

func (c ohlcv) candle(openTime, closeTime time.Time) (domain.MarketCandle, error) {
	out := domain.MarketCandle{OpenTime: openTime, CloseTime: closeTime}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", c.Open, &out.Open},
		{"high", c.High, &out.High},
		{"low", c.Low, &out.Low},
		{"close", c.Close, &out.Close},
		{"volume", c.Volume, &out.Volume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse %s %q", f.name, f.raw)
		}
		*f.dst = v
	}

	return out, nil
}
