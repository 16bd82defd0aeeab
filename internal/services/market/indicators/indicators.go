// Package indicators computes the technical indicators attached to every market snapshot.
// MACD and ATR come from the cinar/indicator library; the moving-average family is
// computed here because it needs partial leading windows and sample deviation.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

const (
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerWidth  = 2.0
	atrPeriod       = 14
)

// Calculate returns one Indicators value per candle, in candle order.
// Values a window cannot cover yet are back-filled from the first defined value,
// then forward-filled; a series with no defined value at all is zero.
func Calculate(candles []domain.MarketCandle) ([]domain.Indicators, error) {
	n := len(candles)
	if n == 0 {
		return nil, fmt.Errorf("no candles to calculate indicators from")
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
	}

	sma5 := fill(RollingMean(closes, 5, 1))
	sma20 := fill(RollingMean(closes, 20, 1))
	sma50 := fill(RollingMean(closes, 50, 1))
	rsi := fill(RSI(closes, rsiPeriod))

	macdLine, signalLine := MACD(closes)
	histogram := make([]float64, n)
	for i := range histogram {
		histogram[i] = macdLine[i] - signalLine[i]
	}
	macdLine, signalLine, histogram = fill(macdLine), fill(signalLine), fill(histogram)

	upper, middle, lower := Bollinger(closes, bollingerPeriod, bollingerWidth)
	upper, middle, lower = fill(upper), fill(middle), fill(lower)

	atr := fill(ATR(highs, lows, closes, atrPeriod))

	out := make([]domain.Indicators, n)
	for i := range out {
		out[i] = domain.Indicators{
			SMA5:          sma5[i],
			SMA20:         sma20[i],
			SMA50:         sma50[i],
			RSI14:         rsi[i],
			MACD:          macdLine[i],
			MACDSignal:    signalLine[i],
			MACDHistogram: histogram[i],
			BBUpper:       upper[i],
			BBMiddle:      middle[i],
			BBLower:       lower[i],
			ATR14:         atr[i],
		}
	}

	return out, nil
}

// RollingMean is a trailing mean over window values. Positions with fewer than
// minPeriods values available are NaN.
func RollingMean(values []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}

		count := min(i+1, window)
		if count < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}

	return out
}

// RSI uses simple means of gains and losses over the last period price changes.
// A window with no losses reads 100.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))

	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			delta := closes[j] - closes[j-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}

		gain /= float64(period)
		loss /= float64(period)

		switch {
		case loss == 0 && gain == 0:
			// undefined, filled later
		case loss == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+gain/loss)
		}
	}

	return out
}

// MACD returns the 12/26 EMA difference and its 9 period signal line, right-aligned
// to closes with NaN where the EMAs are still warming up.
func MACD(closes []float64) ([]float64, []float64) {
	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(closes))

	// both outputs share one upstream and must be drained together
	signalDone := make(chan []float64, 1)
	go func() {
		signalDone <- helper.ChanToSlice(signalChan)
	}()

	macdValues := helper.ChanToSlice(macdChan)
	signalValues := <-signalDone

	return alignRight(macdValues, len(closes)), alignRight(signalValues, len(closes))
}

// Bollinger returns upper, middle and lower bands using the sample standard deviation.
// Positions before the first full window are NaN.
func Bollinger(closes []float64, period int, width float64) ([]float64, []float64, []float64) {
	n := len(closes)
	upper, middle, lower := nanSlice(n), nanSlice(n), nanSlice(n)
	if period < 2 {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		window := closes[i-period+1 : i+1]

		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(period-1))

		middle[i] = mean
		upper[i] = mean + width*std
		lower[i] = mean - width*std
	}

	return upper, middle, lower
}

// ATR returns the average true range, right-aligned to the input.
func ATR(highs, lows, closes []float64, period int) []float64 {
	atr := volatility.NewAtrWithPeriod[float64](period)
	out := atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	)

	return alignRight(helper.ChanToSlice(out), len(closes))
}

func alignRight(values []float64, n int) []float64 {
	out := nanSlice(n)
	if len(values) > n {
		values = values[len(values)-n:]
	}
	copy(out[n-len(values):], values)

	return out
}

// fill back-fills leading NaNs from the first defined value, then forward-fills gaps.
func fill(values []float64) []float64 {
	first := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}

	if first < 0 {
		for i := range values {
			values[i] = 0
		}
		return values
	}

	for i := 0; i < first; i++ {
		values[i] = values[first]
	}
	for i := first + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			values[i] = values[i-1]
		}
	}

	return values
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}
