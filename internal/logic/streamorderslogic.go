package logic

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/internal/errorx"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
	"liquidations-api/pkg/bucket"
	"liquidations-api/pkg/executor"
	"liquidations-api/pkg/export"
	"liquidations-api/pkg/params"
)

const (
	endpointStream = "/api/liquidation-orders/stream"

	ContentTypeNDJSON = "application/x-ndjson"
)

type StreamOrdersLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStreamOrdersLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StreamOrdersLogic {
	return &StreamOrdersLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// StreamPlan is a validated export request.
type StreamPlan struct {
	Symbol    string
	Range     bucket.TimeRange
	BatchSize int
	FileName  string
}

// Plan validates req. Nothing has been written when it fails, so errors
// still map to regular HTTP statuses.
func (l *StreamOrdersLogic) Plan(req *types.OrdersStreamReq) (*StreamPlan, error) {
	symbol, err := params.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, errorx.Wrap(endpointStream, err)
	}
	tr, err := params.ParseRange(req.StartTimestamp, req.EndTimestamp)
	if err != nil {
		return nil, errorx.Wrap(endpointStream, err)
	}
	batch, _, err := params.ParseBoundedInt("batch_size", req.BatchSize, export.DefaultBatchSize, math.MinInt32, math.MaxInt32)
	if err != nil {
		return nil, errorx.Wrap(endpointStream, err)
	}
	return &StreamPlan{
		Symbol:    symbol,
		Range:     tr,
		BatchSize: export.ClampBatchSize(batch),
		FileName:  export.FileName(req.Symbol, req.StartTimestamp, req.EndTimestamp),
	}, nil
}

// Stream writes the export to w. Failures after the headers are sent are
// reported in-band and only logged here.
func (l *StreamOrdersLogic) Stream(plan *StreamPlan, w http.ResponseWriter) export.Summary {
	header := w.Header()
	header.Set("Content-Type", ContentTypeNDJSON)
	header.Set("Content-Disposition", export.ContentDisposition(plan.FileName))
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	started := time.Now()
	sum := export.Stream(l.ctx, w, plan.BatchSize,
		func(ctx context.Context, limit, offset int) ([]types.Order, error) {
			rows, err := l.svcCtx.Liquidations.OrdersBatch(ctx, plan.Symbol, plan.Range, limit, offset)
			if err != nil {
				return nil, err
			}
			return types.NewOrders(rows), nil
		},
		func() { _ = rc.Flush() })

	logger := l.Logger.WithDuration(time.Since(started))
	switch {
	case errors.Is(sum.Err, context.Canceled) || errors.Is(sum.Err, executor.ErrQueryCanceled):
		logger.Infof("%s: stream canceled by client symbol=%s records=%d batches=%d",
			endpointStream, plan.Symbol, sum.Records, sum.Batches)
	case sum.Err != nil:
		logger.Errorf("%s: stream ended early symbol=%s records=%d batches=%d err=%v",
			endpointStream, plan.Symbol, sum.Records, sum.Batches, sum.Err)
	default:
		logger.Infof("%s: stream done symbol=%s records=%d batches=%d",
			endpointStream, plan.Symbol, sum.Records, sum.Batches)
	}
	return sum
}
