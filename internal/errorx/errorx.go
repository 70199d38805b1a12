// Package errorx maps service errors onto HTTP responses.
package errorx

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"liquidations-api/pkg/executor"
	"liquidations-api/pkg/params"
)

const (
	KindNotFound       = "NotFound"
	KindInvalidRequest = "InvalidRequest"
	KindInternalError  = "InternalError"
)

// StatusClientClosedRequest is reported when the caller went away mid-query.
// Nobody reads it; it keeps such requests out of the 5xx counts.
const StatusClientClosedRequest = 499

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// CodeError is an error that already knows its status and envelope.
type CodeError struct {
	Status int
	Kind   string
	Detail string
}

func (e *CodeError) Error() string {
	return e.Kind + ": " + e.Detail
}

// NotFound returns a 404 with the given message.
func NotFound(detail string) *CodeError {
	return &CodeError{Status: http.StatusNotFound, Kind: KindNotFound, Detail: detail}
}

// BadRequest wraps a request decoding failure.
func BadRequest(err error) *CodeError {
	return &CodeError{Status: http.StatusBadRequest, Kind: KindInvalidRequest, Detail: err.Error()}
}

// Endpoint decorates err with the endpoint name for logging. Classification
// still sees the wrapped error.
type Endpoint struct {
	Name string
	Err  error
}

func (e *Endpoint) Error() string { return e.Name + ": " + e.Err.Error() }
func (e *Endpoint) Unwrap() error { return e.Err }

// Wrap tags err with endpoint, or returns nil.
func Wrap(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	return &Endpoint{Name: endpoint, Err: err}
}

// Handler is installed with httpx.SetErrorHandlerCtx.
func Handler(ctx context.Context, err error) (int, any) {
	status, body := Classify(err)
	logger := logx.WithContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Errorf("api: request failed status=%d kind=%s err=%v", status, body.Error, err)
	} else {
		logger.Infof("api: request rejected status=%d kind=%s err=%v", status, body.Error, err)
	}
	return status, body
}

// Classify returns the status and envelope for err.
func Classify(err error) (int, Body) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Status, Body{Error: ce.Kind, Detail: ce.Detail}
	}

	var ve *params.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, Body{Error: string(ve.Kind), Detail: ve.Detail}
	}

	var qe *executor.QueryError
	if errors.As(err, &qe) {
		switch qe.Kind {
		case executor.KindQueryTimeout:
			return http.StatusGatewayTimeout, Body{Error: string(qe.Kind), Detail: qe.Error()}
		case executor.KindQueryCanceled:
			return StatusClientClosedRequest, Body{Error: string(qe.Kind), Detail: "request canceled"}
		case executor.KindDataSourceUnavailable:
			return http.StatusServiceUnavailable, Body{Error: string(qe.Kind), Detail: "database unavailable"}
		default:
			return http.StatusInternalServerError, Body{Error: string(qe.Kind), Detail: "query failed"}
		}
	}

	return http.StatusInternalServerError, Body{Error: KindInternalError, Detail: "internal server error"}
}
