package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	pkgerrors "github.com/quantflare/twse-backtest/pkg/errors"
	"github.com/quantflare/twse-backtest/internal/types"
)

// TradeLedger stores fills and the equity curve in an in-memory DuckDB so
// per-instrument statistics come from SQL and results export straight to
// parquet.
type TradeLedger struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

func NewTradeLedger() (*TradeLedger, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeLedgerFailed, "failed to open ledger database", err)
	}
	l := &TradeLedger{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	if err := l.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *TradeLedger) createTables() error {
	statements := []string{
		`CREATE TABLE trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			signal_date TIMESTAMP NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			price DOUBLE NOT NULL,
			quantity BIGINT NOT NULL,
			amount DOUBLE NOT NULL,
			fee DOUBLE NOT NULL,
			pnl DOUBLE NOT NULL,
			profit_rate DOUBLE NOT NULL,
			holding_days INTEGER NOT NULL,
			reason TEXT
		)`,
		`CREATE TABLE equity (
			date TIMESTAMP PRIMARY KEY,
			total_value DOUBLE NOT NULL,
			cash DOUBLE NOT NULL,
			positions_value DOUBLE NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeLedgerFailed, "failed to create ledger tables", err)
		}
	}
	return nil
}

func (l *TradeLedger) RecordTrade(trade types.Trade) error {
	_, err := l.sq.Insert("trades").
		Columns("id", "symbol", "side", "signal_date", "executed_at", "price", "quantity",
			"amount", "fee", "pnl", "profit_rate", "holding_days", "reason").
		Values(trade.ID, trade.Symbol, string(trade.Side), trade.SignalDate, trade.ExecutedAt,
			trade.Price, trade.Quantity, trade.Amount, trade.Fee, trade.PnL,
			trade.ProfitRate, trade.HoldingDays, trade.Reason).
		RunWith(l.db).
		Exec()
	if err != nil {
		return pkgerrors.Wrapf(pkgerrors.ErrCodeLedgerFailed, err, "failed to record trade %s", trade.ID)
	}
	return nil
}

func (l *TradeLedger) RecordEquity(point types.EquityPoint) error {
	_, err := l.sq.Insert("equity").
		Columns("date", "total_value", "cash", "positions_value").
		Values(point.Date, point.TotalValue, point.Cash, point.PositionsValue).
		RunWith(l.db).
		Exec()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeLedgerFailed, "failed to record equity point", err)
	}
	return nil
}

// InstrumentStats aggregates completed round trips per symbol, ordered by
// symbol. Buys carry no PnL so only sells enter the aggregation.
func (l *TradeLedger) InstrumentStats() ([]types.InstrumentStats, error) {
	rows, err := l.sq.Select(
		"symbol",
		"COUNT(*) AS trades",
		"COUNT(CASE WHEN pnl > 0 THEN 1 END) AS wins",
		"SUM(pnl) AS total_profit",
	).
		From("trades").
		Where(sq.Eq{"side": string(types.SideSell)}).
		GroupBy("symbol").
		OrderBy("symbol").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeQueryFailed, "failed to query instrument stats", err)
	}
	defer rows.Close()

	var stats []types.InstrumentStats
	for rows.Next() {
		var s types.InstrumentStats
		var wins int
		if err := rows.Scan(&s.Symbol, &s.Trades, &wins, &s.TotalProfit); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeQueryFailed, "failed to scan instrument stats", err)
		}
		s.Wins = wins
		if s.Trades > 0 {
			s.WinRate = float64(wins) / float64(s.Trades)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeQueryFailed, "failed to read instrument stats", err)
	}
	return stats, nil
}

// Export writes the trades and equity tables as parquet files under dir.
func (l *TradeLedger) Export(dir string) error {
	exports := map[string]string{
		"trades": filepath.Join(dir, "trades.parquet"),
		"equity": filepath.Join(dir, "equity.parquet"),
	}
	for table, path := range exports {
		stmt := fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET)", table, path)
		if _, err := l.db.Exec(stmt); err != nil {
			return pkgerrors.Wrapf(pkgerrors.ErrCodeExportFailed, err, "failed to export %s to parquet", table)
		}
	}
	return nil
}

func (l *TradeLedger) Close() error {
	return l.db.Close()
}
