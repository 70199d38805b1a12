package svc

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/config"
	"liquidations-api/internal/model"
	"liquidations-api/pkg/executor"
	"liquidations-api/pkg/repo"
)

// ServiceContext carries the collaborators shared by every request. It is
// built once in main and closed on shutdown.
type ServiceContext struct {
	Config config.Config

	DB           *sql.DB
	Liquidations repo.LiquidationRepository
	Cache        *cache.Store
	CachePolicy  *cache.Policy
	TTL          cache.TTLSet
	Warmer       *cache.Warmer
}

// NewServiceContext opens the database pool and the lazy cache store.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	policy, err := c.LoadCachePolicy()
	if err != nil {
		return nil, err
	}
	dsn, err := c.DataSource.BuildDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(c.DataSource.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("svc: open %s: %w", c.DataSource.DriverName(), err)
	}
	db.SetMaxOpenConns(c.DataSource.MaxOpenConns)
	db.SetMaxIdleConns(c.DataSource.MaxIdleConns)
	db.SetConnMaxLifetime(c.DataSource.ConnMaxLifetime)

	store := cache.NewStore(policy.Apply(c.Redis.CacheOptions()))
	ctx, err := NewWithDB(c, db, store, policy)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ctx, nil
}

// NewWithDB wires the context around an already opened pool and store.
func NewWithDB(c config.Config, db *sql.DB, store *cache.Store, policy *cache.Policy) (*ServiceContext, error) {
	if db == nil {
		return nil, errors.New("svc: nil database")
	}
	if policy == nil {
		policy = cache.DefaultPolicy()
	}
	dialect, err := c.DataSource.Dialect()
	if err != nil {
		return nil, err
	}
	aggregation, err := repo.ParseAggregation(c.Liquidations.Aggregation)
	if err != nil {
		return nil, err
	}
	m, err := model.NewLiquidationsModel(dialect, c.Liquidations.Table, c.Liquidations.Notional)
	if err != nil {
		return nil, err
	}
	short, long := c.Query.Budgets()
	exec := executor.New(sqlx.NewSqlConnFromDB(db), short, long)
	liqRepo, err := repo.NewLiquidationRepository(exec, m, aggregation)
	if err != nil {
		return nil, err
	}

	ttl := policy.TTLs()
	return &ServiceContext{
		Config:       c,
		DB:           db,
		Liquidations: liqRepo,
		Cache:        store,
		CachePolicy:  policy,
		TTL:          ttl,
		Warmer:       cache.NewWarmer(store, ttl, policy.Warm.RatePerSecond, 0),
	}, nil
}

// Close releases the pool and the cache connection.
func (s *ServiceContext) Close() {
	if s == nil {
		return
	}
	if err := s.Cache.Close(); err != nil {
		logx.Errorf("svc: close cache err=%v", err)
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			logx.Errorf("svc: close database err=%v", err)
		}
	}
}
