package records

import (
	"context"

	"github.com/vadiminshakov/asterbot/internal/domain"
)

// Store is implemented by every record backend.
type Store interface {
	SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error
	SaveTradeAction(ctx context.Context, rec domain.TradeActionRecord) error
	SavePosition(ctx context.Context, rec domain.PositionRecord) error
	SaveAccount(ctx context.Context, rec domain.AccountRecord) error
	SaveEquity(ctx context.Context, rec domain.EquityRecord) error

	// Recent returns up to limit records of kind, newest first.
	Recent(ctx context.Context, kind domain.RecordKind, limit int) ([]domain.StoredRecord, error)
	// CurrentPosition returns the latest position snapshot, or nil.
	CurrentPosition(ctx context.Context) (*domain.PositionRecord, error)

	Close() error
}

var _ Store = (*WALStore)(nil)
