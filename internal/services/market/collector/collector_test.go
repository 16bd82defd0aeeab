package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"go.uber.org/zap"
)

type fakeProvider struct {
	candles  []domain.MarketCandle
	err      error
	interval string
	limit    int
}

func (f *fakeProvider) GetKlines(_ context.Context, _ string, interval string, limit int) ([]domain.MarketCandle, error) {
	f.interval = interval
	f.limit = limit

	return f.candles, f.err
}

func candles(closes ...float64) []domain.MarketCandle {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.MarketCandle, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = domain.MarketCandle{
			OpenTime:  start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      price,
			High:      price.Add(decimal.NewFromInt(5)),
			Low:       price.Sub(decimal.NewFromInt(5)),
			Close:     price,
			Volume:    decimal.NewFromInt(int64(i + 1)),
			CloseTime: start.Add(time.Duration(i+1) * 15 * time.Minute),
		}
	}

	return out
}

func TestBuildSnapshot(t *testing.T) {
	provider := &fakeProvider{candles: candles(100, 102, 101, 104)}
	builder := NewSnapshotBuilder(zap.NewNop(), provider, "BTCUSDT", "", 0)

	snapshot, err := builder.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultInterval, provider.interval)
	assert.Equal(t, DefaultLimit, provider.limit)

	assert.Equal(t, "BTCUSDT", snapshot.Symbol)
	assert.True(t, decimal.NewFromInt(104).Equal(snapshot.LatestPrice))
	assert.True(t, decimal.NewFromInt(109).Equal(snapshot.High))
	assert.True(t, decimal.NewFromInt(99).Equal(snapshot.Low))
	assert.True(t, decimal.NewFromInt(4).Equal(snapshot.Volume))
	// (104 - 101) / 101 * 100
	assert.InDelta(t, 2.970297, snapshot.PctChange.InexactFloat64(), 1e-6)
	assert.Len(t, snapshot.Series, 4)
	assert.Equal(t, snapshot.Series[3], snapshot.Indicators)
	assert.InDelta(t, 101.75, snapshot.Indicators.SMA5, 1e-9)
}

func TestBuildSnapshotFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		wantErr  error
	}{
		{
			name:     "provider error",
			provider: &fakeProvider{err: errors.New("boom")},
		},
		{
			name:     "single candle",
			provider: &fakeProvider{candles: candles(100)},
			wantErr:  ErrInsufficientData,
		},
		{
			name:     "no candles",
			provider: &fakeProvider{},
			wantErr:  ErrInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewSnapshotBuilder(zap.NewNop(), tt.provider, "BTCUSDT", "15m", 96)

			snapshot, err := builder.Build(context.Background())
			require.Error(t, err)
			assert.Nil(t, snapshot)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestFuturesKlineProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(`[
			[1700000000000,"2000.0","2010.5","1990.0","2005.25","12.5",1700000899999,"25000","10","6","12000","0"],
			[1700000900000,"2005.25","2020.0","2001.0","2018.0","8.0",1700001799999,"16000","7","4","8000","0"]
		]`))
	}))
	defer srv.Close()

	provider := NewFuturesKlineProvider("aster", srv.URL)
	got, err := provider.GetKlines(context.Background(), "ethusdt", "15m", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, time.UnixMilli(1700000000000), got[0].OpenTime)
	assert.True(t, decimal.RequireFromString("2005.25").Equal(got[0].Close))
	assert.True(t, decimal.RequireFromString("2018").Equal(got[1].Close))
	assert.True(t, decimal.RequireFromString("8").Equal(got[1].Volume))
}

func TestIntervalDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "15m", want: 15 * time.Minute},
		{input: "4h", want: 4 * time.Hour},
		{input: "1d", want: 24 * time.Hour},
		{input: "m", wantErr: true},
		{input: "5x", wantErr: true},
		{input: "a5m", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := intervalDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
