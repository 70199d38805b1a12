package logic

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusDisabled  = "disabled"

	healthProbeTimeout = 5 * time.Second
)

type HealthLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HealthLogic {
	return &HealthLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Health probes the database (hard) and the cache (soft). The returned status
// code is 503 only when the database probe fails.
func (l *HealthLogic) Health() (*types.HealthResp, int) {
	resp := &types.HealthResp{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Components: map[string]types.ComponentHealth{},
	}
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(l.ctx, healthProbeTimeout)
	defer cancel()
	if err := l.svcCtx.Liquidations.Ping(ctx); err != nil {
		l.Errorf("health: database probe failed err=%v", err)
		resp.Components["database"] = types.ComponentHealth{
			Status:  StatusUnhealthy,
			Message: "Database connection failed",
		}
		resp.Status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	} else {
		resp.Components["database"] = types.ComponentHealth{
			Status:  StatusHealthy,
			Message: "Database connection successful",
		}
	}

	switch err := l.svcCtx.Cache.Ping(ctx); {
	case err == nil:
		hitRate := l.svcCtx.Cache.Local().HitRate
		resp.Components["redis"] = types.ComponentHealth{
			Status:  StatusHealthy,
			Message: "Redis connection successful",
			HitRate: &hitRate,
		}
	case errors.Is(err, cache.ErrDisabled):
		resp.Components["redis"] = types.ComponentHealth{
			Status:  StatusDisabled,
			Message: "Redis caching disabled",
		}
	default:
		resp.Components["redis"] = types.ComponentHealth{
			Status:  StatusDegraded,
			Message: "Redis not available - running in fallback mode",
		}
		if resp.Status == StatusHealthy {
			resp.Status = StatusDegraded
		}
	}
	return resp, code
}
