package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a family of cached values. It is the key prefix used when a
// long key collapses to its hashed form.
type Kind string

const (
	KindLiquidations Kind = "liquidations"
	KindSymbols      Kind = "symbols"
	KindOrders       Kind = "orders"
)

const (
	maxKeyLength = 200

	DefaultTTL        = 300 * time.Second
	DefaultSymbolsTTL = 3600 * time.Second

	symbolsAllKey = "symbols:all"
)

// Key derives the storage key for a logical request. Long keys are replaced
// by "<kind>:hash:<sha256 hex>" of the full key.
func Key(kind Kind, base string) string {
	if len(base) <= maxKeyLength {
		return base
	}
	sum := sha256.Sum256([]byte(base))
	return fmt.Sprintf("%s:hash:%s", kind, hex.EncodeToString(sum[:]))
}

// LiquidationsKey is liq:{SYMBOL}:{timeframe}:{start}:{end}.
func LiquidationsKey(symbol, timeframe string, startMs, endMs int64) string {
	base := fmt.Sprintf("liq:%s:%s:%d:%d", keySymbol(symbol), strings.ToLower(timeframe), startMs, endMs)
	return Key(KindLiquidations, base)
}

// SymbolsKey is the single key holding the symbol list.
func SymbolsKey() string {
	return symbolsAllKey
}

// LatestOrdersKey is orders:{SYMBOL}:latest:{limit}.
func LatestOrdersKey(symbol string, limit int) string {
	return Key(KindOrders, fmt.Sprintf("orders:%s:latest:%d", keySymbol(symbol), limit))
}

// OrdersPageKey is orders:{SYMBOL}:{start}:{end}:page:{p}:size:{s}.
func OrdersPageKey(symbol string, startMs, endMs int64, page, pageSize int) string {
	base := fmt.Sprintf("orders:%s:%d:%d:page:%d:size:%d", keySymbol(symbol), startMs, endMs, page, pageSize)
	return Key(KindOrders, base)
}

// SymbolPatterns returns the SCAN patterns covering every key of symbol.
// Hashed keys do not carry the symbol and are left to expire.
func SymbolPatterns(symbol string) []string {
	s := escapePattern(keySymbol(symbol))
	return []string{"liq:" + s + ":*", "orders:" + s + ":*"}
}

func keySymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// escapePattern quotes glob metacharacters so a symbol only matches itself.
func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TTLSet holds the expiry per Kind.
type TTLSet struct {
	Default time.Duration
	Symbols time.Duration
}

// DefaultTTLs returns 300s for liquidations/orders and 3600s for symbols.
func DefaultTTLs() TTLSet {
	return TTLSet{Default: DefaultTTL, Symbols: DefaultSymbolsTTL}
}

// For returns the TTL for kind. Unknown kinds get the default.
func (t TTLSet) For(kind Kind) time.Duration {
	if kind == KindSymbols {
		if t.Symbols > 0 {
			return t.Symbols
		}
		return DefaultSymbolsTTL
	}
	if t.Default > 0 {
		return t.Default
	}
	return DefaultTTL
}
