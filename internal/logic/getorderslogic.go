package logic

import (
	"context"
	"math"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/errorx"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
	"liquidations-api/pkg/bucket"
	"liquidations-api/pkg/params"
)

const endpointOrders = "/api/liquidation-orders"

type GetOrdersLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetOrdersLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetOrdersLogic {
	return &GetOrdersLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// GetOrders returns a *types.OrdersPage in range mode and a bare []types.Order
// in limit mode.
func (l *GetOrdersLogic) GetOrders(req *types.OrdersReq) (any, error) {
	resp, err := l.getOrders(req)
	if err != nil {
		return nil, errorx.Wrap(endpointOrders, err)
	}
	return resp, nil
}

func (l *GetOrdersLogic) getOrders(req *types.OrdersReq) (any, error) {
	symbol, err := params.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	mode, err := params.ValidateOrdersMode(
		strings.TrimSpace(req.StartTimestamp) != "",
		strings.TrimSpace(req.EndTimestamp) != "",
		strings.TrimSpace(req.Limit) != "",
	)
	if err != nil {
		return nil, err
	}

	if mode == params.ModeLimit {
		limit, _, err := params.ParseBoundedInt("limit", req.Limit, 0, 1, params.MaxLimit)
		if err != nil {
			return nil, err
		}
		return l.latest(symbol, limit)
	}

	page, _, err := params.ParseBoundedInt("page", req.Page, params.DefaultPage, 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	pageSize, _, err := params.ParseBoundedInt("page_size", req.PageSize, params.DefaultPageSize, 1, params.MaxPageSize)
	if err != nil {
		return nil, err
	}
	tr, err := params.ParseRange(req.StartTimestamp, req.EndTimestamp)
	if err != nil {
		return nil, err
	}
	return l.page(symbol, tr, page, pageSize)
}

func (l *GetOrdersLogic) latest(symbol string, limit int) ([]types.Order, error) {
	key := cache.LatestOrdersKey(symbol, limit)
	return cache.Fetch(l.ctx, l.svcCtx.Cache, key, l.svcCtx.TTL.For(cache.KindOrders),
		func(ctx context.Context) ([]types.Order, error) {
			rows, err := l.svcCtx.Liquidations.LatestOrders(ctx, symbol, limit)
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, errorx.NotFound(msgNoOrders)
			}
			return types.NewOrders(rows), nil
		})
}

// page serves one offset page. HasMore is true when the page came back full,
// which overreports by one page when the total is an exact multiple.
func (l *GetOrdersLogic) page(symbol string, tr bucket.TimeRange, page, pageSize int) (*types.OrdersPage, error) {
	key := cache.OrdersPageKey(symbol, tr.StartMs, tr.EndMs, page, pageSize)
	return cache.Fetch(l.ctx, l.svcCtx.Cache, key, l.svcCtx.TTL.For(cache.KindOrders),
		func(ctx context.Context) (*types.OrdersPage, error) {
			offset := (page - 1) * pageSize
			rows, err := l.svcCtx.Liquidations.OrdersInRange(ctx, symbol, tr, pageSize, offset)
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, errorx.NotFound(msgNoOrders)
			}
			return &types.OrdersPage{
				Data: types.NewOrders(rows),
				Pagination: types.Pagination{
					Page:          page,
					PageSize:      pageSize,
					TotalReturned: len(rows),
					HasMore:       len(rows) == pageSize,
				},
			}, nil
		})
}
