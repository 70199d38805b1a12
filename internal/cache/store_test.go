package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewStore(Options{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreLazyInit(t *testing.T) {
	s, _ := newTestStore(t)
	require.Equal(t, StateUninitialized, s.State())

	_, ok := s.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Equal(t, StateAvailable, s.State())
}

func TestStoreDisabledWithoutAddress(t *testing.T) {
	s := NewStore(Options{})
	require.Equal(t, StateDisabled, s.State())
	require.False(t, s.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, ok := s.Get(context.Background(), "k")
	require.False(t, ok)
	require.ErrorIs(t, s.Ping(context.Background()), ErrDisabled)

	stats := s.Stats(context.Background())
	require.False(t, stats.Available)
	require.Equal(t, "disabled", stats.State)
}

func TestStoreGetSetDeleteWithTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "symbols:all", []byte(`["BTCUSDT"]`), time.Hour))
	require.Equal(t, time.Hour, mr.TTL("symbols:all"))

	v, ok := s.Get(ctx, "symbols:all")
	require.True(t, ok)
	require.JSONEq(t, `["BTCUSDT"]`, string(v))
	require.True(t, s.Exists(ctx, "symbols:all"))

	mr.FastForward(time.Hour + time.Second)
	_, ok = s.Get(ctx, "symbols:all")
	require.False(t, ok)

	require.True(t, s.Set(ctx, "k", []byte("1"), 0))
	require.Equal(t, DefaultTTL, mr.TTL("k"))
	require.True(t, s.Delete(ctx, "k"))
	require.False(t, s.Delete(ctx, "k"))
}

func TestStoreInvalidateSymbol(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{
		LiquidationsKey("BTCUSDT", "1h", 1, 2),
		LiquidationsKey("BTCUSDT", "5m", 1, 2),
		LatestOrdersKey("BTCUSDT", 5),
		OrdersPageKey("BTCUSDT", 1, 2, 1, 100),
		LiquidationsKey("BTCUSDTX", "1h", 1, 2),
		LiquidationsKey("ETHUSDT", "1h", 1, 2),
		SymbolsKey(),
	} {
		require.NoError(t, mr.Set(key, "[]"))
	}

	require.EqualValues(t, 4, s.InvalidateSymbol(ctx, "btcusdt"))
	require.True(t, mr.Exists(LiquidationsKey("ETHUSDT", "1h", 1, 2)))
	require.True(t, mr.Exists(LiquidationsKey("BTCUSDTX", "1h", 1, 2)))
	require.True(t, mr.Exists(SymbolsKey()))

	require.True(t, s.InvalidateSymbols(ctx))
	require.False(t, mr.Exists(SymbolsKey()))

	require.EqualValues(t, 2, s.DeleteByPattern(ctx, "*"))
	require.EqualValues(t, 0, s.DeleteByPattern(ctx, "*"))
}

func TestStoreUnavailableRetriesAfterInterval(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	clock := time.Unix(1_700_000_000, 0)
	s := NewStore(Options{Addr: addr, DialTimeout: 100 * time.Millisecond, RetryInterval: time.Minute})
	s.now = func() time.Time { return clock }
	defer s.Close()
	ctx := context.Background()

	require.False(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.Equal(t, StateUnavailable, s.State())
	require.ErrorIs(t, s.Ping(ctx), ErrUnavailable)

	require.NoError(t, mr.Restart())
	clock = clock.Add(30 * time.Second)
	require.False(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.Equal(t, StateUnavailable, s.State())

	clock = clock.Add(31 * time.Second)
	require.True(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.Equal(t, StateAvailable, s.State())
	require.NoError(t, s.Ping(ctx))
}

func TestStoreBackendFailureIsAMiss(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	require.True(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	mr.Close()
	_, ok := s.Get(ctx, "k")
	require.False(t, ok)
	require.False(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.EqualValues(t, 0, s.InvalidateSymbol(ctx, "BTCUSDT"))
}

func TestStoreStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	_, _ = s.Get(ctx, "k")
	_, _ = s.Get(ctx, "k")
	_, _ = s.Get(ctx, "nope")

	stats := s.Stats(ctx)
	require.EqualValues(t, 2, stats.Local.Hits)
	require.EqualValues(t, 1, stats.Local.Misses)
	require.Equal(t, 66.67, stats.Local.HitRate)
}

func TestParseInfo(t *testing.T) {
	info := "# Clients\r\nconnected_clients:3\r\n\r\n# Memory\r\nused_memory:1024\r\nused_memory_human:1.00K\r\n# Stats\r\nkeyspace_hits:9\r\nkeyspace_misses:1\r\ntotal_commands_processed:42\r\n"
	fields := parseInfo(info)
	require.Equal(t, "3", fields["connected_clients"])
	require.Equal(t, "1.00K", fields["used_memory_human"])
	require.EqualValues(t, 42, parseInt(fields["total_commands_processed"]))
	require.Equal(t, 90.0, hitRate(parseInt(fields["keyspace_hits"]), parseInt(fields["keyspace_misses"])))
	require.Equal(t, 0.0, hitRate(0, 0))
}
