package executor

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const (
	DefaultShortTimeout = 30 * time.Second
	DefaultLongTimeout  = 120 * time.Second
)

// Statement is a named, parameterized query. Paginated statements get the
// long budget unless Timeout is set.
type Statement struct {
	Name      string
	SQL       string
	Args      []any
	Paginated bool
	Timeout   time.Duration
}

// Executor runs statements against the shared pool with a per-statement
// deadline and classifies failures. It never retries.
type Executor struct {
	conn  sqlx.SqlConn
	short time.Duration
	long  time.Duration
}

// New wraps conn. Non-positive budgets fall back to the defaults.
func New(conn sqlx.SqlConn, short, long time.Duration) *Executor {
	if short <= 0 {
		short = DefaultShortTimeout
	}
	if long <= 0 {
		long = DefaultLongTimeout
	}
	return &Executor{conn: conn, short: short, long: long}
}

// Budget returns the deadline applied to stmt.
func (e *Executor) Budget(stmt Statement) time.Duration {
	if stmt.Timeout > 0 {
		return stmt.Timeout
	}
	if stmt.Paginated {
		return e.long
	}
	return e.short
}

// Rows fetches all rows of stmt into dest, which must be a pointer to a slice.
func (e *Executor) Rows(ctx context.Context, stmt Statement, dest any) error {
	budget := e.Budget(stmt)
	qctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	started := time.Now()
	err := e.conn.QueryRowsCtx(qctx, dest, stmt.SQL, stmt.Args...)
	if err != nil {
		return e.fail(ctx, stmt, budget, err, qctx.Err())
	}
	logx.WithContext(ctx).WithDuration(time.Since(started)).Debugf("executor: %s ok", stmt.Name)
	return nil
}

// Row fetches a single row of stmt into dest. found is false when the
// statement matched nothing.
func (e *Executor) Row(ctx context.Context, stmt Statement, dest any) (found bool, err error) {
	budget := e.Budget(stmt)
	qctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	err = e.conn.QueryRowCtx(qctx, dest, stmt.SQL, stmt.Args...)
	if errors.Is(err, sqlx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, e.fail(ctx, stmt, budget, err, qctx.Err())
	}
	return true, nil
}

// Ping checks that a connection can be acquired within the short budget.
func (e *Executor) Ping(ctx context.Context) error {
	db, err := e.conn.RawDB()
	if err != nil {
		return &QueryError{Kind: KindDataSourceUnavailable, Op: "ping", Err: err}
	}
	qctx, cancel := context.WithTimeout(ctx, e.short)
	defer cancel()
	if err := db.PingContext(qctx); err != nil {
		return e.fail(ctx, Statement{Name: "ping"}, e.short, err, qctx.Err())
	}
	return nil
}

func (e *Executor) fail(ctx context.Context, stmt Statement, budget time.Duration, err, ctxErr error) error {
	qerr := &QueryError{
		Kind:    Classify(err, ctxErr),
		Op:      stmt.Name,
		Timeout: budget,
		Err:     err,
	}
	if qerr.Kind == KindQueryCanceled {
		logx.WithContext(ctx).Infof("executor: %s canceled err=%v", stmt.Name, err)
		return qerr
	}
	logx.WithContext(ctx).Errorf("executor: %s failed kind=%s err=%v", stmt.Name, qerr.Kind, err)
	return qerr
}
