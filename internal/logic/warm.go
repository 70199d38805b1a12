package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/svc"
	"liquidations-api/pkg/bucket"
	"liquidations-api/pkg/params"
)

// WarmTargets builds the warm list: the symbol list plus every configured
// symbol and timeframe over the lookback window ending now.
func WarmTargets(svcCtx *svc.ServiceContext) func(context.Context) []cache.WarmTarget {
	return func(ctx context.Context) []cache.WarmTarget {
		warm := svcCtx.CachePolicy.Warm
		end := time.Now().UnixMilli()
		tr := bucket.TimeRange{StartMs: end - warm.Lookback.Milliseconds(), EndMs: end}
		if tr.StartMs < 0 {
			tr.StartMs = 0
		}

		targets := []cache.WarmTarget{{
			Key:  cache.SymbolsKey(),
			Kind: cache.KindSymbols,
			Load: func(ctx context.Context) (any, error) { return loadSymbols(ctx, svcCtx) },
		}}
		for _, raw := range warm.Symbols {
			symbol, err := params.NormalizeSymbol(raw)
			if err != nil {
				continue
			}
			for _, tf := range warm.Timeframes {
				width, err := params.ParseTimeframe(tf)
				if err != nil {
					logx.WithContext(ctx).Errorf("cache: warm skip timeframe=%s err=%v", tf, err)
					continue
				}
				targets = append(targets, cache.WarmTarget{
					Key:  cache.LiquidationsKey(symbol, params.NormalizeTimeframe(tf), tr.StartMs, tr.EndMs),
					Kind: cache.KindLiquidations,
					Load: func(ctx context.Context) (any, error) {
						return loadBuckets(ctx, svcCtx, symbol, tr, width)
					},
				})
			}
		}
		return targets
	}
}
