package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"liquidations-api/internal/errorx"
	"liquidations-api/internal/logic"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
)

func CacheStatsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OkJsonCtx(r.Context(), w, logic.NewCacheLogic(r.Context(), svcCtx).Stats())
	}
}

func CacheClearHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CacheClearReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err))
			return
		}
		httpx.OkJsonCtx(r.Context(), w, logic.NewCacheLogic(r.Context(), svcCtx).Clear(&req))
	}
}

func CacheInvalidateSymbolHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CacheInvalidateSymbolReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err))
			return
		}
		httpx.OkJsonCtx(r.Context(), w, logic.NewCacheLogic(r.Context(), svcCtx).InvalidateSymbol(&req))
	}
}

func CacheInvalidateSymbolsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OkJsonCtx(r.Context(), w, logic.NewCacheLogic(r.Context(), svcCtx).InvalidateSymbols())
	}
}

func CacheWarmHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJsonCtx(r.Context(), w, http.StatusAccepted, logic.NewCacheLogic(r.Context(), svcCtx).Warm())
	}
}

func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, code := logic.NewHealthLogic(r.Context(), svcCtx).Health()
		httpx.WriteJsonCtx(r.Context(), w, code, resp)
	}
}
