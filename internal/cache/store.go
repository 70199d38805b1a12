package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/breaker"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/metric"
)

// State is the lifecycle of the backend connection.
type State int32

const (
	StateUninitialized State = iota
	StateAvailable
	StateUnavailable
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	case StateDisabled:
		return "disabled"
	default:
		return "uninitialized"
	}
}

// ErrUnavailable is reported by Ping when the backend cannot be reached.
var ErrUnavailable = errors.New("cache: backend unavailable")

// ErrDisabled is reported by Ping when caching is switched off.
var ErrDisabled = errors.New("cache: disabled")

const (
	defaultOpTimeout     = time.Second
	defaultRetryInterval = 30 * time.Second
	defaultScanCount     = 500
)

var cacheRequests = metric.NewCounterVec(&metric.CounterVecOpts{
	Namespace: "liquidations_api",
	Subsystem: "cache",
	Name:      "requests_total",
	Help:      "cache lookups by result",
	Labels:    []string{"result"},
})

// Options configures the Redis connection. An empty Addr and URL leaves the
// store disabled.
type Options struct {
	URL           string
	Addr          string
	Password      string
	DB            int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RetryInterval time.Duration
	ScanCount     int64
	Disabled      bool
}

func (o Options) redisOptions() (*redis.Options, error) {
	var ro *redis.Options
	if o.URL != "" {
		parsed, err := redis.ParseURL(o.URL)
		if err != nil {
			return nil, fmt.Errorf("cache: parse redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}
	}
	ro.DialTimeout = orDefault(o.DialTimeout, defaultOpTimeout)
	ro.ReadTimeout = orDefault(o.ReadTimeout, defaultOpTimeout)
	ro.WriteTimeout = orDefault(o.WriteTimeout, defaultOpTimeout)
	ro.MaxRetries = -1
	return ro, nil
}

// Store is a best-effort Redis cache. Backend failures are logged and
// reported as misses or no-ops; they never reach the caller as errors.
type Store struct {
	opts Options
	brk  breaker.Breaker
	now  func() time.Time

	mu          sync.Mutex
	state       State
	client      *redis.Client
	lastAttempt time.Time

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// NewStore returns a store that connects lazily on first use.
func NewStore(opts Options) *Store {
	s := &Store{
		opts: opts,
		brk:  breaker.NewBreaker(breaker.WithName("redis")),
		now:  time.Now,
	}
	if opts.Disabled || (opts.URL == "" && opts.Addr == "") {
		s.state = StateDisabled
	}
	return s
}

// State reports the current lifecycle state without connecting.
func (s *Store) State() State {
	if s == nil {
		return StateDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// conn returns a usable client, performing the lazy handshake when the store
// is uninitialized or a failed handshake is due for a retry.
func (s *Store) conn(ctx context.Context) *redis.Client {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDisabled:
		return nil
	case StateAvailable:
		return s.client
	case StateUnavailable:
		if s.now().Sub(s.lastAttempt) < orDefault(s.opts.RetryInterval, defaultRetryInterval) {
			return nil
		}
	}

	s.lastAttempt = s.now()
	if s.client == nil {
		ro, err := s.opts.redisOptions()
		if err != nil {
			logx.WithContext(ctx).Errorf("cache: init failed err=%v", err)
			s.state = StateDisabled
			return nil
		}
		s.client = redis.NewClient(ro)
	}

	pctx, cancel := context.WithTimeout(ctx, orDefault(s.opts.DialTimeout, defaultOpTimeout))
	defer cancel()
	if err := s.client.Ping(pctx).Err(); err != nil {
		logx.WithContext(ctx).Errorf("cache: handshake failed, serving without cache err=%v", err)
		s.state = StateUnavailable
		return nil
	}
	if s.state == StateUnavailable {
		logx.WithContext(ctx).Infof("cache: backend recovered")
	}
	s.state = StateAvailable
	return s.client
}

// markUnavailable demotes an available store after a connectivity failure so
// the next access goes through the throttled handshake.
func (s *Store) markUnavailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAvailable {
		s.state = StateUnavailable
		s.lastAttempt = s.now()
	}
}

func (s *Store) do(ctx context.Context, op string, fn func(*redis.Client) error) bool {
	client := s.conn(ctx)
	if client == nil {
		return false
	}
	err := s.brk.DoWithAcceptable(func() error {
		return fn(client)
	}, func(err error) bool {
		return err == nil || errors.Is(err, redis.Nil)
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, redis.Nil):
		return false
	case errors.Is(err, breaker.ErrServiceUnavailable):
		return false
	}
	s.errs.Add(1)
	logx.WithContext(ctx).Errorf("cache: %s failed err=%v", op, err)
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		s.markUnavailable()
	}
	return false
}

// Get returns the raw value for key. ok is false on a miss and on any
// backend failure.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool) {
	if s == nil {
		return nil, false
	}
	ok = s.do(ctx, "get key="+key, func(c *redis.Client) error {
		var err error
		value, err = c.Get(ctx, key).Bytes()
		return err
	})
	if ok {
		s.hits.Add(1)
		cacheRequests.Inc("hit")
	} else {
		s.misses.Add(1)
		cacheRequests.Inc("miss")
	}
	return value, ok
}

// Set stores value with ttl and reports whether the write was accepted.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.do(ctx, "set key="+key, func(c *redis.Client) error {
		return c.Set(ctx, key, value, ttl).Err()
	})
}

// Exists reports whether key is present. Lookup failures report false and
// are not counted as hits or misses.
func (s *Store) Exists(ctx context.Context, key string) bool {
	var n int64
	ok := s.do(ctx, "exists key="+key, func(c *redis.Client) error {
		var err error
		n, err = c.Exists(ctx, key).Result()
		return err
	})
	return ok && n > 0
}

// Delete removes key. It reports true only when a key was removed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	var n int64
	ok := s.do(ctx, "delete key="+key, func(c *redis.Client) error {
		var err error
		n, err = c.Del(ctx, key).Result()
		return err
	})
	return ok && n > 0
}

// DeleteByPattern removes every key matching the glob pattern using SCAN and
// returns how many keys were deleted.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) int64 {
	count := s.opts.ScanCount
	if count <= 0 {
		count = defaultScanCount
	}
	var deleted int64
	s.do(ctx, "delete pattern="+pattern, func(c *redis.Client) error {
		var cursor uint64
		for {
			keys, next, err := c.Scan(ctx, cursor, pattern, count).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				n, err := c.Del(ctx, keys...).Result()
				if err != nil {
					return err
				}
				deleted += n
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	return deleted
}

// InvalidateSymbol removes the cached liquidations and orders of symbol.
func (s *Store) InvalidateSymbol(ctx context.Context, symbol string) int64 {
	var total int64
	for _, pattern := range SymbolPatterns(symbol) {
		total += s.DeleteByPattern(ctx, pattern)
	}
	return total
}

// InvalidateSymbols removes the cached symbol list.
func (s *Store) InvalidateSymbols(ctx context.Context) bool {
	return s.Delete(ctx, SymbolsKey())
}

// Ping probes the backend for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if s.State() == StateDisabled {
		return ErrDisabled
	}
	client := s.conn(ctx)
	if client == nil {
		return ErrUnavailable
	}
	pctx, cancel := context.WithTimeout(ctx, orDefault(s.opts.ReadTimeout, defaultOpTimeout))
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		s.markUnavailable()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the client. The store reports Disabled afterwards.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisabled
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func parseInt(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
