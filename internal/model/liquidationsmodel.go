package model

import (
	"fmt"
	"regexp"
	"strings"

	"liquidations-api/pkg/bucket"
	"liquidations-api/pkg/executor"
)

var _ LiquidationsModel = (*customLiquidationsModel)(nil)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Dialect selects placeholder and regex syntax.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// DialectForDriver maps a database/sql driver name to its SQL dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return DialectMySQL, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("model: unsupported driver %q", driver)
	}
}

// Notional sources.
const (
	NotionalComputed = "computed"
	NotionalUsdSize  = "usd_size"
)

// Statement names double as log labels.
const (
	StmtLiquidationsBySymbolTime   = "liquidations_by_symbol_time"
	StmtLiquidationEventsBySymbol  = "liquidation_events_by_symbol_time"
	StmtSymbolsDistinct            = "symbols_distinct"
	StmtOrdersBySymbolTimePaginate = "orders_by_symbol_time_paginated"
	StmtOrdersBySymbolLimit        = "orders_by_symbol_limit"
	StmtOrdersBySymbolTimeStream   = "orders_by_symbol_time_stream"
)

type (
	// LiquidationsModel builds the read statements for the liquidation table.
	LiquidationsModel interface {
		Dialect() Dialect
		AggregateBySymbolTime(symbol string, r bucket.TimeRange, widthMs int64) executor.Statement
		EventsBySymbolTime(symbol string, r bucket.TimeRange) executor.Statement
		SymbolsDistinct() executor.Statement
		OrdersBySymbolTime(symbol string, r bucket.TimeRange, limit, offset int) executor.Statement
		OrdersBySymbolLimit(symbol string, limit int) executor.Statement
		OrdersBySymbolTimeStream(symbol string, r bucket.TimeRange, batch, offset int) executor.Statement
	}

	customLiquidationsModel struct {
		dialect  Dialect
		table    string
		notional string
	}
)

// NewLiquidationsModel returns a model for table (binance_liqs when empty).
// notional picks between the computed price*quantity product and a legacy
// usd_size column.
func NewLiquidationsModel(dialect Dialect, table, notional string) (LiquidationsModel, error) {
	if dialect != DialectMySQL && dialect != DialectPostgres {
		return nil, fmt.Errorf("model: unsupported dialect %q", dialect)
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = defaultLiquidationsTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("model: invalid table name %q", table)
	}
	var expr string
	switch strings.ToLower(strings.TrimSpace(notional)) {
	case "", NotionalComputed:
		expr = "average_price * order_filled_accumulated_quantity"
	case NotionalUsdSize:
		expr = "usd_size"
	default:
		return nil, fmt.Errorf("model: unknown notional source %q", notional)
	}
	return &customLiquidationsModel{dialect: dialect, table: table, notional: expr}, nil
}

func (m *customLiquidationsModel) Dialect() Dialect { return m.dialect }

func (m *customLiquidationsModel) tableName() string { return m.table }

func (m *customLiquidationsModel) rows() string {
	if m.dialect == DialectPostgres {
		return liquidationsRowsPostgres
	}
	return liquidationsRows
}

// ph returns the n-th (1-based) placeholder.
func (m *customLiquidationsModel) ph(n int) string {
	if m.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// AggregateBySymbolTime groups rows into side-partitioned buckets in SQL.
// Bucket edges are computed as floor((t - start) / width) * width + start.
// A bucket whose notionals are all NULL sums to 0.
func (m *customLiquidationsModel) AggregateBySymbolTime(symbol string, r bucket.TimeRange, widthMs int64) executor.Statement {
	if m.dialect == DialectPostgres {
		query := fmt.Sprintf(`
SELECT symbol,
       (floor((order_trade_time - $1)::numeric / $2) * $2 + $1)::bigint AS start_timestamp,
       (floor((order_trade_time - $1)::numeric / $2) * $2 + $1 + $2)::bigint AS end_timestamp,
       side,
       COALESCE(SUM(%s), 0)::double precision AS cumulated_usd_size
FROM %s
WHERE LOWER(symbol) = $3
  AND order_trade_time BETWEEN $4 AND $5
GROUP BY symbol, start_timestamp, end_timestamp, side
ORDER BY symbol, start_timestamp, side`, m.notional, m.tableName())
		return executor.Statement{
			Name: StmtLiquidationsBySymbolTime,
			SQL:  query,
			Args: []any{r.StartMs, widthMs, symbol, r.StartMs, r.EndMs},
		}
	}

	query := fmt.Sprintf(`
SELECT symbol,
       FLOOR((order_trade_time - ?) / ?) * ? + ? AS start_timestamp,
       FLOOR((order_trade_time - ?) / ?) * ? + ? + ? AS end_timestamp,
       side,
       COALESCE(SUM(%s), 0) AS cumulated_usd_size
FROM %s
WHERE LOWER(symbol) = ?
  AND order_trade_time BETWEEN ? AND ?
GROUP BY symbol, start_timestamp, end_timestamp, side
ORDER BY symbol, start_timestamp, side`, m.notional, m.tableName())
	return executor.Statement{
		Name: StmtLiquidationsBySymbolTime,
		SQL:  query,
		Args: []any{
			r.StartMs, widthMs, widthMs, r.StartMs,
			r.StartMs, widthMs, widthMs, r.StartMs, widthMs,
			symbol, r.StartMs, r.EndMs,
		},
	}
}

// EventsBySymbolTime selects the minimal projection for in-process bucketing.
func (m *customLiquidationsModel) EventsBySymbolTime(symbol string, r bucket.TimeRange) executor.Statement {
	query := fmt.Sprintf(`
SELECT symbol, side, order_trade_time, COALESCE(%s, 0) AS notional_usd
FROM %s
WHERE LOWER(symbol) = %s
  AND order_trade_time BETWEEN %s AND %s`,
		m.notional, m.tableName(), m.ph(1), m.ph(2), m.ph(3))
	return executor.Statement{
		Name: StmtLiquidationEventsBySymbol,
		SQL:  query,
		Args: []any{symbol, r.StartMs, r.EndMs},
	}
}

// SymbolsDistinct lists symbols, excluding those that end in a run of digits
// (dated contracts).
func (m *customLiquidationsModel) SymbolsDistinct() executor.Statement {
	op := "NOT REGEXP"
	if m.dialect == DialectPostgres {
		op = "!~"
	}
	query := fmt.Sprintf(`
SELECT DISTINCT symbol
FROM %s
WHERE symbol %s %s
ORDER BY symbol`, m.tableName(), op, m.ph(1))
	return executor.Statement{
		Name: StmtSymbolsDistinct,
		SQL:  query,
		Args: []any{liquidationsSymbolSuffixPattern},
	}
}

func (m *customLiquidationsModel) ordersInRange(name, symbol string, r bucket.TimeRange, limit, offset int) executor.Statement {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE LOWER(symbol) = %s AND order_trade_time BETWEEN %s AND %s
ORDER BY order_trade_time DESC
LIMIT %s OFFSET %s`,
		m.rows(), m.tableName(), m.ph(1), m.ph(2), m.ph(3), m.ph(4), m.ph(5))
	return executor.Statement{
		Name:      name,
		SQL:       query,
		Args:      []any{symbol, r.StartMs, r.EndMs, limit, offset},
		Paginated: true,
	}
}

// OrdersBySymbolTime returns one page of orders, newest first.
func (m *customLiquidationsModel) OrdersBySymbolTime(symbol string, r bucket.TimeRange, limit, offset int) executor.Statement {
	return m.ordersInRange(StmtOrdersBySymbolTimePaginate, symbol, r, limit, offset)
}

// OrdersBySymbolTimeStream returns one export batch, newest first.
func (m *customLiquidationsModel) OrdersBySymbolTimeStream(symbol string, r bucket.TimeRange, batch, offset int) executor.Statement {
	return m.ordersInRange(StmtOrdersBySymbolTimeStream, symbol, r, batch, offset)
}

// OrdersBySymbolLimit returns the latest limit orders.
func (m *customLiquidationsModel) OrdersBySymbolLimit(symbol string, limit int) executor.Statement {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE LOWER(symbol) = %s
ORDER BY order_trade_time DESC
LIMIT %s`, m.rows(), m.tableName(), m.ph(1), m.ph(2))
	return executor.Statement{
		Name: StmtOrdersBySymbolLimit,
		SQL:  query,
		Args: []any{symbol, limit},
	}
}
