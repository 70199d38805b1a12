package repo

import (
	"context"
	"fmt"

	"liquidations-api/internal/model"
	"liquidations-api/pkg/bucket"
	"liquidations-api/pkg/executor"
)

// LiquidationRepository exposes the read paths over the liquidation table.
// Symbols passed in are already normalized to lower case.
type LiquidationRepository interface {
	AggregateBuckets(ctx context.Context, symbol string, r bucket.TimeRange, widthMs int64) ([]bucket.Bucket, error)
	Symbols(ctx context.Context) ([]string, error)
	OrdersInRange(ctx context.Context, symbol string, r bucket.TimeRange, limit, offset int) ([]model.Liquidations, error)
	LatestOrders(ctx context.Context, symbol string, limit int) ([]model.Liquidations, error)
	OrdersBatch(ctx context.Context, symbol string, r bucket.TimeRange, batch, offset int) ([]model.Liquidations, error)
	Ping(ctx context.Context) error
}

type liquidationRepo struct {
	exec        *executor.Executor
	model       model.LiquidationsModel
	aggregation Aggregation
}

func NewLiquidationRepository(exec *executor.Executor, m model.LiquidationsModel, aggregation Aggregation) (LiquidationRepository, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	if m == nil {
		return nil, fmt.Errorf("repo: nil liquidations model")
	}
	if aggregation == "" {
		aggregation = AggregateInDatabase
	}
	return &liquidationRepo{exec: exec, model: m, aggregation: aggregation}, nil
}

func (r *liquidationRepo) AggregateBuckets(ctx context.Context, symbol string, tr bucket.TimeRange, widthMs int64) ([]bucket.Bucket, error) {
	if widthMs <= 0 {
		return nil, fmt.Errorf("repo: non-positive bucket width %d", widthMs)
	}
	if r.aggregation == AggregateInMemory {
		return r.aggregateInMemory(ctx, symbol, tr, widthMs)
	}

	var rows []model.LiquidationBuckets
	if err := r.exec.Rows(ctx, r.model.AggregateBySymbolTime(symbol, tr, widthMs), &rows); err != nil {
		return nil, err
	}
	out := make([]bucket.Bucket, 0, len(rows))
	for _, row := range rows {
		out = append(out, bucket.Bucket{
			Symbol:       row.Symbol,
			StartMs:      row.StartTimestamp,
			EndMs:        row.EndTimestamp,
			Side:         row.Side,
			CumulatedUSD: row.CumulatedUsdSize,
		})
	}
	bucket.Sort(out)
	return out, nil
}

func (r *liquidationRepo) aggregateInMemory(ctx context.Context, symbol string, tr bucket.TimeRange, widthMs int64) ([]bucket.Bucket, error) {
	var rows []model.LiquidationEvents
	if err := r.exec.Rows(ctx, r.model.EventsBySymbolTime(symbol, tr), &rows); err != nil {
		return nil, err
	}
	events := make([]bucket.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, bucket.Event{
			Symbol:      row.Symbol,
			Side:        row.Side,
			TradeTimeMs: row.OrderTradeTime,
			NotionalUSD: row.NotionalUsd,
		})
	}
	return bucket.Aggregate(tr, widthMs, events), nil
}

type symbolRow struct {
	Symbol string `db:"symbol"`
}

func (r *liquidationRepo) Symbols(ctx context.Context) ([]string, error) {
	var rows []symbolRow
	if err := r.exec.Rows(ctx, r.model.SymbolsDistinct(), &rows); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Symbol)
	}
	return out, nil
}

func (r *liquidationRepo) OrdersInRange(ctx context.Context, symbol string, tr bucket.TimeRange, limit, offset int) ([]model.Liquidations, error) {
	var rows []model.Liquidations
	if err := r.exec.Rows(ctx, r.model.OrdersBySymbolTime(symbol, tr, limit, offset), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *liquidationRepo) LatestOrders(ctx context.Context, symbol string, limit int) ([]model.Liquidations, error) {
	var rows []model.Liquidations
	if err := r.exec.Rows(ctx, r.model.OrdersBySymbolLimit(symbol, limit), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *liquidationRepo) OrdersBatch(ctx context.Context, symbol string, tr bucket.TimeRange, batch, offset int) ([]model.Liquidations, error) {
	var rows []model.Liquidations
	if err := r.exec.Rows(ctx, r.model.OrdersBySymbolTimeStream(symbol, tr, batch, offset), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *liquidationRepo) Ping(ctx context.Context) error {
	return r.exec.Ping(ctx)
}
