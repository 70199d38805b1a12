package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/errorx"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
	"liquidations-api/pkg/params"
)

const endpointLiquidations = "/api/liquidations"

type GetLiquidationsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetLiquidationsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetLiquidationsLogic {
	return &GetLiquidationsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// GetLiquidations returns side-partitioned notional buckets for one symbol.
func (l *GetLiquidationsLogic) GetLiquidations(req *types.LiquidationsReq) ([]types.LiquidationBucket, error) {
	resp, err := l.getLiquidations(req)
	return resp, errorx.Wrap(endpointLiquidations, err)
}

func (l *GetLiquidationsLogic) getLiquidations(req *types.LiquidationsReq) ([]types.LiquidationBucket, error) {
	symbol, err := params.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	start, err := params.ParseTimestamp(req.StartTimestamp)
	if err != nil {
		return nil, err
	}
	end, err := params.ParseTimestamp(req.EndTimestamp)
	if err != nil {
		return nil, err
	}
	width, err := params.ParseTimeframe(req.Timeframe)
	if err != nil {
		return nil, err
	}
	tr, err := params.ValidateRange(start, end)
	if err != nil {
		return nil, err
	}

	key := cache.LiquidationsKey(symbol, params.NormalizeTimeframe(req.Timeframe), tr.StartMs, tr.EndMs)
	return cache.Fetch(l.ctx, l.svcCtx.Cache, key, l.svcCtx.TTL.For(cache.KindLiquidations),
		func(ctx context.Context) ([]types.LiquidationBucket, error) {
			return loadBuckets(ctx, l.svcCtx, symbol, tr, width)
		})
}
