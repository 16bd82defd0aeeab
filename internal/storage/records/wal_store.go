// Package records persists the per-cycle analysis, trade, position, account and equity
// records for the dashboard.
package records

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultRecordsDir  = "./wal/records"
	recordSegmentLimit = 1000
	recordMaxSegments  = 50
)

// WALStore keeps every record kind in a single WAL. The entry key is the record kind.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed record store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultRecordsDir
	}

	return openWALStore(gowal.Config{
		Dir:              dir,
		Prefix:           "records_",
		SegmentThreshold: recordSegmentLimit,
		MaxSegments:      recordMaxSegments,
		IsInSyncDiskMode: true,
	})
}

func openWALStore(cfg gowal.Config) (*WALStore, error) {
	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init records WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveAnalysis stores an advisor decision.
func (s *WALStore) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	return s.append(ctx, domain.RecordAnalysis, rec)
}

// SaveTradeAction stores a trade decision.
func (s *WALStore) SaveTradeAction(ctx context.Context, rec domain.TradeActionRecord) error {
	return s.append(ctx, domain.RecordTradeAction, rec)
}

// SavePosition stores a position snapshot.
func (s *WALStore) SavePosition(ctx context.Context, rec domain.PositionRecord) error {
	return s.append(ctx, domain.RecordPosition, rec)
}

// SaveAccount stores an account snapshot.
func (s *WALStore) SaveAccount(ctx context.Context, rec domain.AccountRecord) error {
	return s.append(ctx, domain.RecordAccount, rec)
}

// SaveEquity stores an equity curve point.
func (s *WALStore) SaveEquity(ctx context.Context, rec domain.EquityRecord) error {
	return s.append(ctx, domain.RecordEquity, rec)
}

func (s *WALStore) append(ctx context.Context, kind domain.RecordKind, rec any) error {
	if s == nil || s.wal == nil {
		return errors.New("record store is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "marshal %s record", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, string(kind), payload); err != nil {
		return errors.Wrapf(err, "write %s record", kind)
	}

	return nil
}

// Recent returns up to limit records of kind, newest first.
func (s *WALStore) Recent(ctx context.Context, kind domain.RecordKind, limit int) ([]domain.StoredRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("record store is not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StoredRecord, 0, limit)
	for idx := s.wal.CurrentIndex(); idx > 0 && len(out) < limit; idx-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read record %d", idx)
		}
		if key == "" && payload == nil {
			// older segments were rotated away
			break
		}
		if key != string(kind) {
			continue
		}

		rec, err := storedRecord(idx, kind, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// CurrentPosition returns the latest position snapshot, or nil when none was stored.
func (s *WALStore) CurrentPosition(ctx context.Context) (*domain.PositionRecord, error) {
	recent, err := s.Recent(ctx, domain.RecordPosition, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	var pos domain.PositionRecord
	if err := recent[0].Decode(&pos); err != nil {
		return nil, err
	}

	return &pos, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("record store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func storedRecord(idx uint64, kind domain.RecordKind, payload []byte) (domain.StoredRecord, error) {
	var stamp struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &stamp); err != nil {
		return domain.StoredRecord{}, errors.Wrapf(err, "decode %s record at %d", kind, idx)
	}

	return domain.StoredRecord{
		Index:     idx,
		Kind:      kind,
		Timestamp: stamp.Timestamp,
		Payload:   json.RawMessage(payload),
	}, nil
}
