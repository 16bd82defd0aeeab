package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type scanner struct {
	query string
	scan  func(rowScanner) (int64, time.Time, any, error)
}

const (
	analysisQuery = `SELECT id, timestamp, COALESCE(symbol, ''), signal, confidence, COALESCE(reason, ''),
		COALESCE(technical_data, '{}'), COALESCE(price, 0), COALESCE(stop_loss, 0), COALESCE(take_profit, 0),
		COALESCE(fallback, FALSE), COALESCE(gate_decision, '') FROM ai_analysis`

	tradeQuery = `SELECT id, timestamp, action_type, symbol, COALESCE(side, ''), quantity, price, COALESCE(pnl, 0),
		exchange, COALESCE(signal, ''), COALESCE(confidence, ''), COALESCE(is_simulated, FALSE),
		COALESCE(position_status, ''), COALESCE(order_id, 0), COALESCE(client_order_id, ''), COALESCE(error, '')
		FROM trading_actions`

	positionQuery = `SELECT id, timestamp, symbol, side, size, entry_price, current_price, COALESCE(unrealized_pnl, 0),
		leverage, exchange, status FROM positions`

	accountQuery = `SELECT id, timestamp, total_balance, available_balance, COALESCE(unrealized_pnl, 0),
		margin_balance, exchange, symbol, leverage FROM accounts`

	equityQuery = `SELECT id, timestamp, equity, COALESCE(total_pnl, 0), COALESCE(daily_pnl, 0) FROM equity_history`
)

var scanners = map[domain.RecordKind]scanner{
	domain.RecordAnalysis:    {query: analysisQuery, scan: scanAnalysis},
	domain.RecordTradeAction: {query: tradeQuery, scan: scanTrade},
	domain.RecordPosition:    {query: positionQuery, scan: scanPosition},
	domain.RecordAccount:     {query: accountQuery, scan: scanAccount},
	domain.RecordEquity:      {query: equityQuery, scan: scanEquity},
}

func scanAnalysis(row rowScanner) (int64, time.Time, any, error) {
	var (
		id                          int64
		ts, signal, conf, technical string
		rec                         domain.AnalysisRecord
		price, stopLoss, takeProfit float64
	)

	if err := row.Scan(&id, &ts, &rec.Symbol, &signal, &conf, &rec.Reason, &technical,
		&price, &stopLoss, &takeProfit, &rec.Fallback, &rec.GateDecision); err != nil {
		return 0, time.Time{}, nil, err
	}

	t, err := parseTime(ts)
	if err != nil {
		return 0, time.Time{}, nil, err
	}
	if err := json.Unmarshal([]byte(technical), &rec.Technical); err != nil {
		return 0, time.Time{}, nil, err
	}

	rec.Timestamp = t
	rec.Signal = domain.Direction(signal)
	rec.Confidence = domain.Confidence(conf)
	rec.Price = decimal.NewFromFloat(price)
	rec.StopLoss = decimal.NewFromFloat(stopLoss)
	rec.TakeProfit = decimal.NewFromFloat(takeProfit)

	return id, t, rec, nil
}

func scanTrade(row rowScanner) (int64, time.Time, any, error) {
	var (
		id                          int64
		ts, side, signal, conf, pos string
		qty, price, pnl             float64
		rec                         domain.TradeActionRecord
	)

	if err := row.Scan(&id, &ts, &rec.ActionType, &rec.Symbol, &side, &qty, &price, &pnl,
		&rec.Exchange, &signal, &conf, &rec.IsSimulated, &pos, &rec.OrderID, &rec.ClientOrderID, &rec.Error); err != nil {
		return 0, time.Time{}, nil, err
	}

	t, err := parseTime(ts)
	if err != nil {
		return 0, time.Time{}, nil, err
	}

	rec.Timestamp = t
	rec.Side = domain.OrderSide(side)
	rec.Quantity = decimal.NewFromFloat(qty)
	rec.Price = decimal.NewFromFloat(price)
	rec.PnL = decimal.NewFromFloat(pnl)
	rec.Signal = domain.Direction(signal)
	rec.Confidence = domain.Confidence(conf)
	rec.PositionStatus = domain.PositionStatus(pos)

	return id, t, rec, nil
}

func scanPosition(row rowScanner) (int64, time.Time, any, error) {
	var (
		id                             int64
		ts, side, status               string
		size, entry, current, pnl, lev float64
		rec                            domain.PositionRecord
	)

	if err := row.Scan(&id, &ts, &rec.Symbol, &side, &size, &entry, &current, &pnl, &lev, &rec.Exchange, &status); err != nil {
		return 0, time.Time{}, nil, err
	}

	t, err := parseTime(ts)
	if err != nil {
		return 0, time.Time{}, nil, err
	}

	rec.Timestamp = t
	rec.Side = domain.PositionSide(side)
	rec.Size = decimal.NewFromFloat(size)
	rec.EntryPrice = decimal.NewFromFloat(entry)
	rec.CurrentPrice = decimal.NewFromFloat(current)
	rec.UnrealizedPnl = decimal.NewFromFloat(pnl)
	rec.Leverage = int(lev)
	rec.Status = domain.PositionStatus(status)

	return id, t, rec, nil
}

func scanAccount(row rowScanner) (int64, time.Time, any, error) {
	var (
		id                                 int64
		ts                                 string
		total, available, pnl, margin, lev float64
		rec                                domain.AccountRecord
	)

	if err := row.Scan(&id, &ts, &total, &available, &pnl, &margin, &rec.Exchange, &rec.Symbol, &lev); err != nil {
		return 0, time.Time{}, nil, err
	}

	t, err := parseTime(ts)
	if err != nil {
		return 0, time.Time{}, nil, err
	}

	rec.Timestamp = t
	rec.TotalBalance = decimal.NewFromFloat(total)
	rec.AvailableBalance = decimal.NewFromFloat(available)
	rec.UnrealizedPnl = decimal.NewFromFloat(pnl)
	rec.MarginBalance = decimal.NewFromFloat(margin)
	rec.Leverage = int(lev)

	return id, t, rec, nil
}

func scanEquity(row rowScanner) (int64, time.Time, any, error) {
	var (
		id                   int64
		ts                   string
		equity, total, daily float64
	)

	if err := row.Scan(&id, &ts, &equity, &total, &daily); err != nil {
		return 0, time.Time{}, nil, err
	}

	t, err := parseTime(ts)
	if err != nil {
		return 0, time.Time{}, nil, err
	}

	return id, t, domain.EquityRecord{
		Timestamp: t,
		Equity:    decimal.NewFromFloat(equity),
		TotalPnl:  decimal.NewFromFloat(total),
		DailyPnl:  decimal.NewFromFloat(daily),
	}, nil
}

var _ rowScanner = (*sql.Row)(nil)
