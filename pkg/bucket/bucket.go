package bucket

import (
	"fmt"
	"sort"
)

// TimeRange is an inclusive window of epoch milliseconds.
type TimeRange struct {
	StartMs int64
	EndMs   int64
}

// Contains reports whether ts falls inside the inclusive window.
func (r TimeRange) Contains(ts int64) bool {
	return ts >= r.StartMs && ts <= r.EndMs
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.StartMs, r.EndMs)
}

// Event is the minimal projection of a liquidation row needed for bucketing.
type Event struct {
	Symbol      string
	Side        string
	TradeTimeMs int64
	NotionalUSD float64
}

// Bucket is one side-partitioned aggregate over a fixed-width window.
type Bucket struct {
	Symbol       string
	StartMs      int64
	EndMs        int64
	Side         string
	CumulatedUSD float64
}

// Index returns floor((ts - startMs) / widthMs). widthMs must be positive.
func Index(ts, startMs, widthMs int64) int64 {
	return floorDiv(ts-startMs, widthMs)
}

// Bounds returns the [start, end) edges of the bucket with the given index.
func Bounds(index, startMs, widthMs int64) (int64, int64) {
	start := startMs + index*widthMs
	return start, start + widthMs
}

type groupKey struct {
	symbol string
	index  int64
	side   string
}

// Aggregate groups events by symbol, bucket and side and sums their notional.
// Events outside r are ignored. The result is ordered by symbol, bucket start
// and side.
func Aggregate(r TimeRange, widthMs int64, events []Event) []Bucket {
	if widthMs <= 0 || len(events) == 0 {
		return []Bucket{}
	}
	sums := make(map[groupKey]float64)
	for _, ev := range events {
		if !r.Contains(ev.TradeTimeMs) {
			continue
		}
		key := groupKey{
			symbol: ev.Symbol,
			index:  Index(ev.TradeTimeMs, r.StartMs, widthMs),
			side:   ev.Side,
		}
		sums[key] += ev.NotionalUSD
	}
	out := make([]Bucket, 0, len(sums))
	for key, total := range sums {
		start, end := Bounds(key.index, r.StartMs, widthMs)
		out = append(out, Bucket{
			Symbol:       key.symbol,
			StartMs:      start,
			EndMs:        end,
			Side:         key.side,
			CumulatedUSD: total,
		})
	}
	Sort(out)
	return out
}

// Sort orders buckets by symbol, start and side so results are stable
// regardless of where the grouping happened.
func Sort(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.StartMs != b.StartMs {
			return a.StartMs < b.StartMs
		}
		return a.Side < b.Side
	})
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
