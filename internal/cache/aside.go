package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// Backend is the subset of Store used by the cache-aside helper.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// Fetch returns the cached value for key or, on a miss, calls fn once and
// caches its result. Errors from fn are returned uncached. An undecodable
// cached value counts as a miss. Concurrent misses on the same key each call
// fn; there is no request coalescing.
func Fetch[T any](ctx context.Context, b Backend, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if b != nil {
		if raw, ok := b.Get(ctx, key); ok {
			var cached T
			err := json.Unmarshal(raw, &cached)
			if err == nil {
				return cached, nil
			}
			logx.WithContext(ctx).Errorf("cache: decode key=%s err=%v", key, err)
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	if b != nil {
		if raw, err := json.Marshal(v); err != nil {
			logx.WithContext(ctx).Errorf("cache: encode key=%s err=%v", key, err)
		} else {
			b.Set(ctx, key, raw, ttl)
		}
	}
	return v, nil
}
