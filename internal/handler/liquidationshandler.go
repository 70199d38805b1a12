package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"liquidations-api/internal/errorx"
	"liquidations-api/internal/logic"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
)

func GetLiquidationsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LiquidationsReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err))
			return
		}

		l := logic.NewGetLiquidationsLogic(r.Context(), svcCtx)
		resp, err := l.GetLiquidations(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

func GetSymbolsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewGetSymbolsLogic(r.Context(), svcCtx)
		resp, err := l.GetSymbols()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
