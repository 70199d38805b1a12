package types

import (
	"database/sql"
	"time"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/model"
	"liquidations-api/pkg/bucket"
)

// Query parameters arrive as raw strings so presence and ISO timestamps can
// be validated by the logic layer.
type (
	LiquidationsReq struct {
		Symbol         string `form:"symbol,optional"`
		Timeframe      string `form:"timeframe,optional"`
		StartTimestamp string `form:"start_timestamp,optional"`
		EndTimestamp   string `form:"end_timestamp,optional"`
	}

	OrdersReq struct {
		Symbol         string `form:"symbol,optional"`
		StartTimestamp string `form:"start_timestamp,optional"`
		EndTimestamp   string `form:"end_timestamp,optional"`
		Limit          string `form:"limit,optional"`
		Page           string `form:"page,optional"`
		PageSize       string `form:"page_size,optional"`
	}

	OrdersStreamReq struct {
		Symbol         string `form:"symbol,optional"`
		StartTimestamp string `form:"start_timestamp,optional"`
		EndTimestamp   string `form:"end_timestamp,optional"`
		BatchSize      string `form:"batch_size,optional"`
	}

	CacheClearReq struct {
		Pattern string `form:"pattern,default=*"`
	}

	CacheInvalidateSymbolReq struct {
		Symbol string `path:"symbol"`
	}
)

type LiquidationBucket struct {
	Symbol           string  `json:"symbol"`
	Timestamp        int64   `json:"timestamp"`
	EndTimestamp     int64   `json:"end_timestamp"`
	TimestampISO     string  `json:"timestamp_iso"`
	Side             string  `json:"side"`
	CumulatedUsdSize float64 `json:"cumulated_usd_size"`
}

// Order is one liquidation row. Nullable columns encode as JSON null.
type Order struct {
	Symbol                         string   `json:"symbol"`
	Side                           string   `json:"side"`
	OrderType                      *string  `json:"order_type"`
	TimeInForce                    *string  `json:"time_in_force"`
	OriginalQuantity               *float64 `json:"original_quantity"`
	Price                          *float64 `json:"price"`
	AveragePrice                   *float64 `json:"average_price"`
	OrderStatus                    *string  `json:"order_status"`
	OrderLastFilledQuantity        *float64 `json:"order_last_filled_quantity"`
	OrderFilledAccumulatedQuantity *float64 `json:"order_filled_accumulated_quantity"`
	OrderTradeTime                 int64    `json:"order_trade_time"`
}

type Pagination struct {
	Page          int  `json:"page"`
	PageSize      int  `json:"page_size"`
	TotalReturned int  `json:"total_returned"`
	HasMore       bool `json:"has_more"`
}

type OrdersPage struct {
	Data       []Order    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type CacheStatsResp struct {
	CacheStats cache.Stats `json:"cache_stats"`
	Message    string      `json:"message"`
}

type CacheClearResp struct {
	DeletedKeys int64  `json:"deleted_keys"`
	Pattern     string `json:"pattern"`
	Message     string `json:"message"`
}

type CacheInvalidateSymbolResp struct {
	DeletedKeys int64  `json:"deleted_keys"`
	Symbol      string `json:"symbol"`
	Message     string `json:"message"`
}

type CacheInvalidateSymbolsResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CacheWarmResp struct {
	JobID   string            `json:"job_id"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Last    *cache.WarmResult `json:"last,omitempty"`
}

type ComponentHealth struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	HitRate *float64 `json:"hit_rate,omitempty"`
}

type HealthResp struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// NewLiquidationBucket renders b for the API.
func NewLiquidationBucket(b bucket.Bucket) LiquidationBucket {
	return LiquidationBucket{
		Symbol:           b.Symbol,
		Timestamp:        b.StartMs,
		EndTimestamp:     b.EndMs,
		TimestampISO:     time.UnixMilli(b.StartMs).UTC().Format(time.RFC3339),
		Side:             b.Side,
		CumulatedUsdSize: b.CumulatedUSD,
	}
}

// NewOrder renders a table row for the API.
func NewOrder(row model.Liquidations) Order {
	return Order{
		Symbol:                         row.Symbol,
		Side:                           row.Side,
		OrderType:                      nullString(row.OrderType),
		TimeInForce:                    nullString(row.TimeInForce),
		OriginalQuantity:               nullFloat(row.OriginalQuantity),
		Price:                          nullFloat(row.Price),
		AveragePrice:                   nullFloat(row.AveragePrice),
		OrderStatus:                    nullString(row.OrderStatus),
		OrderLastFilledQuantity:        nullFloat(row.OrderLastFilledQuantity),
		OrderFilledAccumulatedQuantity: nullFloat(row.OrderFilledAccumulatedQuantity),
		OrderTradeTime:                 row.OrderTradeTime,
	}
}

// NewOrders renders rows in order.
func NewOrders(rows []model.Liquidations) []Order {
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewOrder(row))
	}
	return out
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
