package logic

import (
	"context"

	"liquidations-api/internal/errorx"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
	"liquidations-api/pkg/bucket"
)

const (
	msgNoBuckets = "No data found for the given parameters"
	msgNoOrders  = "No liquidation orders found for the given criteria"
)

// The loaders below are shared by the endpoints and the cache warmer so both
// store the same shapes under the same keys.

func loadBuckets(ctx context.Context, svcCtx *svc.ServiceContext, symbol string, tr bucket.TimeRange, widthMs int64) ([]types.LiquidationBucket, error) {
	buckets, err := svcCtx.Liquidations.AggregateBuckets(ctx, symbol, tr, widthMs)
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		return nil, errorx.NotFound(msgNoBuckets)
	}
	out := make([]types.LiquidationBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, types.NewLiquidationBucket(b))
	}
	return out, nil
}

func loadSymbols(ctx context.Context, svcCtx *svc.ServiceContext) ([]string, error) {
	symbols, err := svcCtx.Liquidations.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	if symbols == nil {
		symbols = []string{}
	}
	return symbols, nil
}
