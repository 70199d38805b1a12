package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"liquidations-api/internal/errorx"
	"liquidations-api/internal/logic"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
)

func GetOrdersHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.OrdersReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err))
			return
		}

		l := logic.NewGetOrdersLogic(r.Context(), svcCtx)
		resp, err := l.GetOrders(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

// StreamOrdersHandler validates before writing anything, then streams
// NDJSON. Later failures are written in-band by the exporter.
func StreamOrdersHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.OrdersStreamReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err))
			return
		}

		l := logic.NewStreamOrdersLogic(r.Context(), svcCtx)
		plan, err := l.Plan(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		l.Stream(plan, w)
	}
}
