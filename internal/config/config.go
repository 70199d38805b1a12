package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/zeromicro/go-zero/rest"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/model"
	"liquidations-api/pkg/confkit"
	"liquidations-api/pkg/repo"
)

type Config struct {
	rest.RestConf

	DataSource      DataSourceConf
	Redis           RedisConf
	Query           QueryConf
	Liquidations    LiquidationsConf
	CachePolicyFile string `json:",optional"`
}

// DataSourceConf describes the liquidation database. DSN wins over the
// discrete fields when set.
type DataSourceConf struct {
	Driver          string        `json:",default=mysql,options=mysql|pgx|postgres"`
	DSN             string        `json:",optional,env=DB_DSN"`
	Host            string        `json:",default=localhost,env=DB_HOST"`
	Port            int           `json:",optional,env=DB_PORT"`
	User            string        `json:",optional,env=DB_USER"`
	Password        string        `json:",optional,env=DB_PASSWORD"`
	Database        string        `json:",optional,env=DB_DATABASE"`
	SSLMode         string        `json:",default=disable"`
	MaxOpenConns    int           `json:",default=20"`
	MaxIdleConns    int           `json:",default=5"`
	ConnMaxLifetime time.Duration `json:",default=1h"`
}

// RedisConf locates the cache backend. URL wins over Host/Port.
type RedisConf struct {
	URL      string `json:",optional,env=REDIS_URL"`
	Host     string `json:",default=localhost,env=REDIS_HOST"`
	Port     int    `json:",default=6379,env=REDIS_PORT"`
	Password string `json:",optional,env=REDIS_PASSWORD"`
	DB       int    `json:",default=0,env=REDIS_DB"`
}

// QueryConf holds statement budgets in seconds.
type QueryConf struct {
	TimeoutSeconds     int `json:",default=30,env=QUERY_TIMEOUT_SECONDS"`
	LongTimeoutSeconds int `json:",default=120,env=LONG_QUERY_TIMEOUT_SECONDS"`
}

type LiquidationsConf struct {
	Table       string `json:",default=binance_liqs,env=DB_LIQ_TABLENAME"`
	Notional    string `json:",default=computed,options=computed|usd_size"`
	Aggregation string `json:",default=database,options=database|memory"`
}

// DriverName returns the database/sql driver to open.
func (c DataSourceConf) DriverName() string {
	return strings.ToLower(strings.TrimSpace(c.Driver))
}

// Dialect maps the driver to its SQL dialect.
func (c DataSourceConf) Dialect() (model.Dialect, error) {
	return model.DialectForDriver(c.DriverName())
}

// BuildDSN returns the connection string for the configured driver.
func (c DataSourceConf) BuildDSN() (string, error) {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn, nil
	}
	dialect, err := c.Dialect()
	if err != nil {
		return "", err
	}
	switch dialect {
	case model.DialectMySQL:
		port := c.Port
		if port <= 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
		mc.DBName = c.Database
		return mc.FormatDSN(), nil
	default:
		port := c.Port
		if port <= 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		q := url.Values{}
		if c.SSLMode != "" {
			q.Set("sslmode", c.SSLMode)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}

// CacheOptions returns connection options for the cache store.
func (c RedisConf) CacheOptions() cache.Options {
	opts := cache.Options{URL: strings.TrimSpace(c.URL), Password: c.Password, DB: c.DB}
	if opts.URL == "" && strings.TrimSpace(c.Host) != "" {
		port := c.Port
		if port <= 0 {
			port = 6379
		}
		opts.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	}
	return opts
}

// Budgets returns the short and long statement deadlines.
func (c QueryConf) Budgets() (time.Duration, time.Duration) {
	return time.Duration(c.TimeoutSeconds) * time.Second, time.Duration(c.LongTimeoutSeconds) * time.Second
}

// LoadCachePolicy reads the cache policy file, falling back to defaults when
// none is configured.
func (c Config) LoadCachePolicy() (*cache.Policy, error) {
	path := strings.TrimSpace(c.CachePolicyFile)
	if path == "" {
		return cache.DefaultPolicy(), nil
	}
	return cache.LoadPolicy(confkit.MustProjectPath(path))
}

// Validate checks cross-field constraints the tag options cannot express.
func (c Config) Validate() error {
	if _, err := c.DataSource.Dialect(); err != nil {
		return err
	}
	if _, err := repo.ParseAggregation(c.Liquidations.Aggregation); err != nil {
		return err
	}
	if c.Query.TimeoutSeconds <= 0 || c.Query.LongTimeoutSeconds <= 0 {
		return fmt.Errorf("config: query timeouts must be positive")
	}
	if c.DataSource.MaxOpenConns < c.DataSource.MaxIdleConns {
		return fmt.Errorf("config: MaxOpenConns %d below MaxIdleConns %d",
			c.DataSource.MaxOpenConns, c.DataSource.MaxIdleConns)
	}
	return nil
}
