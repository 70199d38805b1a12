package handler

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/zeromicro/go-zero/rest"

	"liquidations-api/internal/svc"
)

const (
	// Streams run until the source is drained.
	streamTimeout = time.Hour

	compressMinSize = 1000
)

// CompressionMiddleware gzips responses of at least compressMinSize bytes.
// Flushes pass through, so streamed batches still reach the client.
func CompressionMiddleware() (rest.Middleware, error) {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(compressMinSize))
	if err != nil {
		return nil, err
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return wrap(next)
	}, nil
}

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/liquidations",
				Handler: GetLiquidationsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/symbols",
				Handler: GetSymbolsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/liquidation-orders",
				Handler: GetOrdersHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/liquidation-orders/stream",
				Handler: StreamOrdersHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
		rest.WithTimeout(streamTimeout),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/stats",
				Handler: CacheStatsHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/clear",
				Handler: CacheClearHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/invalidate/symbol/:symbol",
				Handler: CacheInvalidateSymbolHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/invalidate/symbols",
				Handler: CacheInvalidateSymbolsHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/warm",
				Handler: CacheWarmHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api/cache"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/health",
				Handler: HealthHandler(serverCtx),
			},
		},
	)
}
