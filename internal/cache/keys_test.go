package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyFormats(t *testing.T) {
	require.Equal(t, "liq:BTCUSDT:1h:1609459200000:1609462800000",
		LiquidationsKey("btcusdt", "1H", 1609459200000, 1609462800000))
	require.Equal(t, "symbols:all", SymbolsKey())
	require.Equal(t, "orders:ETHUSDT:latest:5", LatestOrdersKey(" ethusdt ", 5))
	require.Equal(t, "orders:ETHUSDT:1:2:page:3:size:100", OrdersPageKey("EthUsdt", 1, 2, 3, 100))
}

func TestKeysAreDeterministicAndDistinct(t *testing.T) {
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BTCUSD"}
	timeframes := []string{"5m", "15m", "1h", "4h", "1d"}
	ranges := [][2]int64{{0, 1}, {1, 10}, {10, 100}, {1609459200000, 1609462800000}}

	seen := make(map[string]string)
	for _, s := range symbols {
		for _, tf := range timeframes {
			for _, r := range ranges {
				key := LiquidationsKey(s, tf, r[0], r[1])
				require.Equal(t, key, LiquidationsKey(strings.ToLower(s), strings.ToUpper(tf), r[0], r[1]))
				id := s + "|" + tf
				prev, dup := seen[key]
				require.False(t, dup, "collision between %s and %s", prev, id)
				seen[key] = id
			}
		}
	}
}

func TestLongKeysAreHashed(t *testing.T) {
	symbol := strings.Repeat("X", 250)
	key := LiquidationsKey(symbol, "1h", 1, 2)
	require.True(t, strings.HasPrefix(key, "liquidations:hash:"))
	require.Len(t, key, len("liquidations:hash:")+64)
	require.Equal(t, key, LiquidationsKey(strings.ToLower(symbol), "1h", 1, 2))
	require.NotEqual(t, key, LiquidationsKey(symbol, "1h", 1, 3))

	short := Key(KindOrders, strings.Repeat("a", maxKeyLength))
	require.Len(t, short, maxKeyLength)
}

func TestSymbolPatternsEscapeGlob(t *testing.T) {
	require.Equal(t, []string{"liq:BTCUSDT:*", "orders:BTCUSDT:*"}, SymbolPatterns("btcusdt"))
	require.Equal(t, []string{`liq:BTC\*:*`, `orders:BTC\*:*`}, SymbolPatterns("btc*"))
}

func TestTTLs(t *testing.T) {
	ttl := DefaultTTLs()
	require.Equal(t, 300*time.Second, ttl.For(KindLiquidations))
	require.Equal(t, 300*time.Second, ttl.For(KindOrders))
	require.Equal(t, time.Hour, ttl.For(KindSymbols))

	custom := TTLSet{Default: time.Minute}
	require.Equal(t, time.Minute, custom.For(KindOrders))
	require.Equal(t, DefaultSymbolsTTL, custom.For(KindSymbols))
}
