package executor

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/breaker"
)

// Kind classifies a failed statement.
type Kind string

const (
	KindQueryTimeout          Kind = "QueryTimeout"
	KindDataSourceUnavailable Kind = "DataSourceUnavailable"
	KindQueryFailed           Kind = "QueryFailed"
	KindQueryCanceled         Kind = "QueryCanceled"
)

// QueryError wraps a driver error with its classification and the statement
// name that produced it.
type QueryError struct {
	Kind    Kind
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *QueryError) Error() string {
	switch e.Kind {
	case KindQueryTimeout:
		return fmt.Sprintf("executor: %s timed out after %s", e.Op, e.Timeout)
	case KindQueryCanceled:
		return fmt.Sprintf("executor: %s canceled by caller", e.Op)
	default:
		return fmt.Sprintf("executor: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	return ok && t.Op == "" && t.Kind == e.Kind
}

var (
	ErrQueryTimeout          = &QueryError{Kind: KindQueryTimeout}
	ErrDataSourceUnavailable = &QueryError{Kind: KindDataSourceUnavailable}
	ErrQueryFailed           = &QueryError{Kind: KindQueryFailed}
	ErrQueryCanceled         = &QueryError{Kind: KindQueryCanceled}
)

// Classify maps a driver error to a Kind. ctxErr is the error of the
// statement-scoped context, which distinguishes our own deadline from a
// caller cancellation.
func Classify(err, ctxErr error) Kind {
	if errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindQueryTimeout
	}
	if pgconn.Timeout(err) {
		return KindQueryTimeout
	}
	if errors.Is(ctxErr, context.Canceled) || errors.Is(err, context.Canceled) {
		return KindQueryCanceled
	}
	if unavailable(err) {
		return KindDataSourceUnavailable
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 3024, 1317, 1205:
			return KindQueryTimeout
		case 1040, 1053, 2002, 2003, 2006, 2013:
			return KindDataSourceUnavailable
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "57014" {
			return KindQueryTimeout
		}
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P03" {
			return KindDataSourceUnavailable
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "57014" {
			return KindQueryTimeout
		}
		if pqErr.Code.Class() == "08" || pqErr.Code == "57P01" || pqErr.Code == "57P03" {
			return KindDataSourceUnavailable
		}
	}
	return KindQueryFailed
}

func unavailable(err error) bool {
	if errors.Is(err, breaker.ErrServiceUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
