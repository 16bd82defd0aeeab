// Package reconciler reads the live position from the exchange. The exchange is the
// only source of truth; nothing is cached between cycles.
package reconciler

import (
	"context"
	"strings"
	"time"

	"github.com/vadiminshakov/asterbot/internal/domain"
	"go.uber.org/zap"
)

type positionReader interface {
	GetPositions(ctx context.Context, symbol string) ([]domain.PositionRisk, error)
}

// Reconciler turns the positionRisk response into a PositionState.
type Reconciler struct {
	gateway positionReader
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a reconciler.
func New(logger *zap.Logger, gateway positionReader) *Reconciler {
	return &Reconciler{gateway: gateway, logger: logger, now: time.Now}
}

// GetCurrentPosition returns the position for symbol. A failed read yields API_FAILED
// with the cause attached, never NO_POSITION.
func (r *Reconciler) GetCurrentPosition(ctx context.Context, symbol string) domain.PositionState {
	symbol = strings.ToUpper(symbol)
	at := r.now()

	positions, err := r.gateway.GetPositions(ctx, symbol)
	if err != nil {
		r.logger.Error("failed to read positions", zap.String("symbol", symbol), zap.Error(err))
		return domain.FailedPosition(symbol, at, err)
	}

	for _, p := range positions {
		if !strings.EqualFold(p.Symbol, symbol) || p.PositionAmt.IsZero() {
			continue
		}

		side := domain.PositionSideLong
		if p.PositionAmt.IsNegative() {
			side = domain.PositionSideShort
		}

		state := domain.PositionState{
			Symbol:        symbol,
			Side:          side,
			Size:          p.PositionAmt.Abs(),
			EntryPrice:    p.EntryPrice,
			UnrealizedPnl: p.UnRealizedProfit,
			Leverage:      int(p.Leverage.IntPart()),
			Status:        domain.PositionStatusActive,
			ReadAt:        at,
		}

		r.logger.Debug("position read",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.String("size", state.Size.String()),
			zap.String("entry", state.EntryPrice.String()),
			zap.String("unrealized_pnl", state.UnrealizedPnl.String()))

		return state
	}

	return domain.NoPosition(symbol, at)
}
