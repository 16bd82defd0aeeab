// Package sqlitestore is the SQLite record backend. Tables follow the dashboard's layout:
// ai_analysis, trading_actions, positions, accounts and equity_history.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/storage/records"
	_ "modernc.org/sqlite" // SQLite driver
)

var _ records.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS ai_analysis (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	symbol TEXT,
	signal TEXT NOT NULL,
	confidence TEXT NOT NULL,
	reason TEXT,
	technical_data TEXT,
	price REAL,
	stop_loss REAL,
	take_profit REAL,
	fallback BOOLEAN DEFAULT FALSE,
	gate_decision TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS trading_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	action_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	pnl REAL DEFAULT 0,
	exchange TEXT NOT NULL,
	signal TEXT,
	confidence TEXT,
	is_simulated BOOLEAN DEFAULT FALSE,
	position_status TEXT,
	order_id INTEGER,
	client_order_id TEXT,
	error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	current_price REAL NOT NULL,
	unrealized_pnl REAL DEFAULT 0,
	leverage REAL NOT NULL,
	exchange TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	total_balance REAL NOT NULL,
	available_balance REAL NOT NULL,
	unrealized_pnl REAL DEFAULT 0,
	margin_balance REAL NOT NULL,
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	leverage REAL NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS equity_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	equity REAL NOT NULL,
	total_pnl REAL DEFAULT 0,
	daily_pnl REAL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// Store writes records into a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the SQLite database at path and applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &Store{db: db}, nil
}

// SaveAnalysis stores an advisor decision.
func (s *Store) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	technical, err := json.Marshal(rec.Technical)
	if err != nil {
		return errors.Wrap(err, "marshal technical data")
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO ai_analysis
		(timestamp, symbol, signal, confidence, reason, technical_data, price, stop_loss, take_profit, fallback, gate_decision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.Timestamp), rec.Symbol, string(rec.Signal), string(rec.Confidence), rec.Reason,
		string(technical), rec.Price.InexactFloat64(), rec.StopLoss.InexactFloat64(), rec.TakeProfit.InexactFloat64(),
		rec.Fallback, rec.GateDecision)

	return errors.Wrap(err, "insert ai_analysis")
}

// SaveTradeAction stores a trade decision.
func (s *Store) SaveTradeAction(ctx context.Context, rec domain.TradeActionRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO trading_actions
		(timestamp, action_type, symbol, side, quantity, price, pnl, exchange, signal, confidence,
		 is_simulated, position_status, order_id, client_order_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.Timestamp), rec.ActionType, rec.Symbol, string(rec.Side),
		rec.Quantity.InexactFloat64(), rec.Price.InexactFloat64(), rec.PnL.InexactFloat64(),
		rec.Exchange, string(rec.Signal), string(rec.Confidence), rec.IsSimulated,
		string(rec.PositionStatus), rec.OrderID, rec.ClientOrderID, rec.Error)

	return errors.Wrap(err, "insert trading_actions")
}

// SavePosition stores a position snapshot.
func (s *Store) SavePosition(ctx context.Context, rec domain.PositionRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO positions
		(timestamp, symbol, side, size, entry_price, current_price, unrealized_pnl, leverage, exchange, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.Timestamp), rec.Symbol, string(rec.Side), rec.Size.InexactFloat64(),
		rec.EntryPrice.InexactFloat64(), rec.CurrentPrice.InexactFloat64(), rec.UnrealizedPnl.InexactFloat64(),
		rec.Leverage, rec.Exchange, string(rec.Status))

	return errors.Wrap(err, "insert positions")
}

// SaveAccount stores an account snapshot.
func (s *Store) SaveAccount(ctx context.Context, rec domain.AccountRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts
		(timestamp, total_balance, available_balance, unrealized_pnl, margin_balance, exchange, symbol, leverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.Timestamp), rec.TotalBalance.InexactFloat64(), rec.AvailableBalance.InexactFloat64(),
		rec.UnrealizedPnl.InexactFloat64(), rec.MarginBalance.InexactFloat64(), rec.Exchange, rec.Symbol, rec.Leverage)

	return errors.Wrap(err, "insert accounts")
}

// SaveEquity stores an equity curve point.
func (s *Store) SaveEquity(ctx context.Context, rec domain.EquityRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO equity_history (timestamp, equity, total_pnl, daily_pnl)
		VALUES (?, ?, ?, ?)`,
		formatTime(rec.Timestamp), rec.Equity.InexactFloat64(), rec.TotalPnl.InexactFloat64(), rec.DailyPnl.InexactFloat64())

	return errors.Wrap(err, "insert equity_history")
}

// Recent returns up to limit records of kind, newest first.
func (s *Store) Recent(ctx context.Context, kind domain.RecordKind, limit int) ([]domain.StoredRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	scan, ok := scanners[kind]
	if !ok {
		return nil, errors.Errorf("unknown record kind %q", kind)
	}

	rows, err := s.db.QueryContext(ctx, scan.query+" ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", kind)
	}
	defer rows.Close()

	out := make([]domain.StoredRecord, 0, limit)
	for rows.Next() {
		id, ts, rec, err := scan.scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", kind)
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s", kind)
		}

		out = append(out, domain.StoredRecord{
			Index:     uint64(id),
			Kind:      kind,
			Timestamp: ts,
			Payload:   payload,
		})
	}

	return out, errors.Wrapf(rows.Err(), "iterate %s", kind)
}

// CurrentPosition returns the latest position snapshot, or nil when none was stored.
func (s *Store) CurrentPosition(ctx context.Context) (*domain.PositionRecord, error) {
	row := s.db.QueryRowContext(ctx, positionQuery+" ORDER BY id DESC LIMIT 1")

	_, _, rec, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query current position")
	}

	pos := rec.(domain.PositionRecord)

	return &pos, nil
}

// Close releases the underlying DB handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, errors.Wrapf(err, "parse timestamp %q", s)
}
