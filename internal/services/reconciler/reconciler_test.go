package reconciler

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"go.uber.org/zap"
)

type stubGateway struct {
	positions []domain.PositionRisk
	err       error
}

func (s stubGateway) GetPositions(context.Context, string) ([]domain.PositionRisk, error) {
	return s.positions, s.err
}

func TestGetCurrentPosition(t *testing.T) {
	tests := []struct {
		name      string
		gateway   stubGateway
		status    domain.PositionStatus
		side      domain.PositionSide
		size      string
		pnl       string
		wantError bool
	}{
		{
			name: "long",
			gateway: stubGateway{positions: []domain.PositionRisk{{
				Symbol:           "BTCUSDT",
				PositionAmt:      decimal.RequireFromString("0.02"),
				EntryPrice:       decimal.NewFromInt(50000),
				UnRealizedProfit: decimal.RequireFromString("12.3"),
				Leverage:         decimal.NewFromInt(5),
			}}},
			status: domain.PositionStatusActive,
			side:   domain.PositionSideLong,
			size:   "0.02",
			pnl:    "12.3",
		},
		{
			name: "short skips zero entries and other symbols",
			gateway: stubGateway{positions: []domain.PositionRisk{
				{Symbol: "BTCUSDT", PositionAmt: decimal.Zero},
				{Symbol: "ETHUSDT", PositionAmt: decimal.NewFromInt(3)},
				{Symbol: "BTCUSDT", PositionAmt: decimal.RequireFromString("-0.05"), UnRealizedProfit: decimal.NewFromInt(-7)},
			}},
			status: domain.PositionStatusActive,
			side:   domain.PositionSideShort,
			size:   "0.05",
			pnl:    "-7",
		},
		{
			name:    "flat",
			gateway: stubGateway{positions: []domain.PositionRisk{{Symbol: "BTCUSDT", PositionAmt: decimal.Zero}}},
			status:  domain.PositionStatusNone,
			side:    domain.PositionSideNone,
			size:    "0",
			pnl:     "0",
		},
		{
			name:      "api failure is not flat",
			gateway:   stubGateway{err: errors.New("timeout")},
			status:    domain.PositionStatusAPIFailure,
			side:      domain.PositionSideNone,
			size:      "0",
			pnl:       "0",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(zap.NewNop(), tt.gateway)

			state := r.GetCurrentPosition(context.Background(), "btcusdt")

			assert.Equal(t, "BTCUSDT", state.Symbol)
			assert.Equal(t, tt.status, state.Status)
			assert.Equal(t, tt.side, state.Side)
			assert.True(t, decimal.RequireFromString(tt.size).Equal(state.Size), "size %s", state.Size)
			assert.True(t, decimal.RequireFromString(tt.pnl).Equal(state.UnrealizedPnl))
			assert.Equal(t, tt.wantError, state.Err != nil)
			assert.Equal(t, !tt.wantError, state.Known())
		})
	}
}
