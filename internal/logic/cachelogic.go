package logic

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
)

type CacheLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCacheLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CacheLogic {
	return &CacheLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *CacheLogic) Stats() *types.CacheStatsResp {
	stats := l.svcCtx.Cache.Stats(l.ctx)
	msg := "Cache not available"
	if stats.Available {
		msg = "Cache statistics retrieved successfully"
	}
	return &types.CacheStatsResp{CacheStats: stats, Message: msg}
}

func (l *CacheLogic) Clear(req *types.CacheClearReq) *types.CacheClearResp {
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	n := l.svcCtx.Cache.DeleteByPattern(l.ctx, pattern)
	l.Infof("cache: cleared pattern=%s deleted=%d", pattern, n)
	return &types.CacheClearResp{
		DeletedKeys: n,
		Pattern:     pattern,
		Message:     fmt.Sprintf("Successfully cleared %d cache entries", n),
	}
}

func (l *CacheLogic) InvalidateSymbol(req *types.CacheInvalidateSymbolReq) *types.CacheInvalidateSymbolResp {
	n := l.svcCtx.Cache.InvalidateSymbol(l.ctx, req.Symbol)
	return &types.CacheInvalidateSymbolResp{
		DeletedKeys: n,
		Symbol:      req.Symbol,
		Message:     fmt.Sprintf("Successfully invalidated %d cache entries for symbol %s", n, req.Symbol),
	}
}

func (l *CacheLogic) InvalidateSymbols() *types.CacheInvalidateSymbolsResp {
	ok := l.svcCtx.Cache.InvalidateSymbols(l.ctx)
	msg := "Failed to invalidate symbols cache"
	if ok {
		msg = "Symbols cache invalidated successfully"
	}
	return &types.CacheInvalidateSymbolsResp{Success: ok, Message: msg}
}

// Warm starts a background warm run unless one is already in flight.
func (l *CacheLogic) Warm() *types.CacheWarmResp {
	jobID, started := l.svcCtx.Warmer.Start(WarmTargets(l.svcCtx))
	resp := &types.CacheWarmResp{
		JobID:   jobID,
		Status:  "initiated",
		Message: "Cache warming started in background",
	}
	if !started {
		resp.Status = "running"
		resp.Message = "Cache warming already in progress"
	}
	if last, ok := l.svcCtx.Warmer.Last(); ok {
		resp.Last = &last
	}
	return resp
}
