package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/errorx"
	"liquidations-api/internal/svc"
)

const endpointSymbols = "/api/symbols"

type GetSymbolsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetSymbolsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetSymbolsLogic {
	return &GetSymbolsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// GetSymbols lists distinct symbols. No rows is an empty list, not a 404.
func (l *GetSymbolsLogic) GetSymbols() ([]string, error) {
	symbols, err := cache.Fetch(l.ctx, l.svcCtx.Cache, cache.SymbolsKey(), l.svcCtx.TTL.For(cache.KindSymbols),
		func(ctx context.Context) ([]string, error) {
			return loadSymbols(ctx, l.svcCtx)
		})
	return symbols, errorx.Wrap(endpointSymbols, err)
}
