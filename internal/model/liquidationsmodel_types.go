package model

import (
	"database/sql"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/builder"
)

var (
	liquidationsFieldNames          = builder.RawFieldNames(&Liquidations{})
	liquidationsFieldNamesPostgres  = builder.RawFieldNames(&Liquidations{}, true)
	liquidationsRows                = strings.Join(liquidationsFieldNames, ",")
	liquidationsRowsPostgres        = strings.Join(liquidationsFieldNamesPostgres, ",")
	defaultLiquidationsTable        = "binance_liqs"
	liquidationsSymbolSuffixPattern = "[0-9]+$"
)

type (
	// Liquidations is one row of the liquidation events table. Quantities and
	// prices are nullable in the source feed.
	Liquidations struct {
		Symbol                         string          `db:"symbol"`
		Side                           string          `db:"side"`
		OrderType                      sql.NullString  `db:"order_type"`
		TimeInForce                    sql.NullString  `db:"time_in_force"`
		OriginalQuantity               sql.NullFloat64 `db:"original_quantity"`
		Price                          sql.NullFloat64 `db:"price"`
		AveragePrice                   sql.NullFloat64 `db:"average_price"`
		OrderStatus                    sql.NullString  `db:"order_status"`
		OrderLastFilledQuantity        sql.NullFloat64 `db:"order_last_filled_quantity"`
		OrderFilledAccumulatedQuantity sql.NullFloat64 `db:"order_filled_accumulated_quantity"`
		OrderTradeTime                 int64           `db:"order_trade_time"`
	}

	// LiquidationBuckets is one grouped row produced by the aggregation query.
	LiquidationBuckets struct {
		Symbol           string  `db:"symbol"`
		StartTimestamp   int64   `db:"start_timestamp"`
		EndTimestamp     int64   `db:"end_timestamp"`
		Side             string  `db:"side"`
		CumulatedUsdSize float64 `db:"cumulated_usd_size"`
	}

	// LiquidationEvents is the projection used for in-process aggregation.
	LiquidationEvents struct {
		Symbol         string  `db:"symbol"`
		Side           string  `db:"side"`
		OrderTradeTime int64   `db:"order_trade_time"`
		NotionalUsd    float64 `db:"notional_usd"`
	}
)
