package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		direction domain.Direction
		side      domain.PositionSide
		want      Plan
		label     string
	}{
		{domain.DirectionBuy, domain.PositionSideShort, Plan{Close: domain.ActionCloseShort, Open: domain.ActionOpenLong}, "close_short+open_long"},
		{domain.DirectionBuy, domain.PositionSideNone, Plan{Open: domain.ActionOpenLong}, "open_long"},
		{domain.DirectionBuy, domain.PositionSideLong, Plan{}, "hold"},
		{domain.DirectionSell, domain.PositionSideLong, Plan{Close: domain.ActionCloseLong, Open: domain.ActionOpenShort}, "close_long+open_short"},
		{domain.DirectionSell, domain.PositionSideNone, Plan{Open: domain.ActionOpenShort}, "open_short"},
		{domain.DirectionSell, domain.PositionSideShort, Plan{}, "hold"},
		{domain.DirectionHold, domain.PositionSideLong, Plan{}, "hold"},
		{domain.DirectionHold, domain.PositionSideShort, Plan{}, "hold"},
		{domain.DirectionHold, domain.PositionSideNone, Plan{}, "hold"},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction)+"_"+string(tt.side), func(t *testing.T) {
			got := Decide(tt.direction, tt.side)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.label, got.String())
			assert.Equal(t, tt.want.Close != domain.ActionHold && tt.want.Open != domain.ActionHold, got.IsFlip())
		})
	}
}
