package params

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"liquidations-api/pkg/bucket"
)

const (
	minuteMs = int64(60_000)
	hourMs   = int64(3_600_000)
	dayMs    = int64(86_400_000)

	MaxLimit        = 1000
	MaxPageSize     = 1000
	DefaultPage     = 1
	DefaultPageSize = 100

	MaxBatchSize     = 5000
	DefaultBatchSize = 1000
)

var timeframePattern = regexp.MustCompile(`^([0-9]+)([mhd])$`)

// isoLayouts are tried in order. Layouts without a zone parse as UTC, and
// fractional seconds are accepted after the seconds field by time.Parse.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15Z07:00",
	"2006-01-02T15",
	"2006-01-02 15",
	"2006-01-02",
}

// ParseTimeframe converts "<n><m|h|d>" (case-insensitive) to a bucket width in
// milliseconds.
func ParseTimeframe(token string) (int64, error) {
	m := timeframePattern.FindStringSubmatch(strings.ToLower(token))
	if m == nil {
		return 0, invalid(KindInvalidTimeframe, "invalid timeframe %q, expected <n>m, <n>h or <n>d", token)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, invalid(KindInvalidTimeframe, "invalid timeframe %q, magnitude must be a positive integer", token)
	}
	var unit int64
	switch m[2] {
	case "m":
		unit = minuteMs
	case "h":
		unit = hourMs
	default:
		unit = dayMs
	}
	if n > math.MaxInt64/unit {
		return 0, invalid(KindInvalidTimeframe, "timeframe %q is too large", token)
	}
	return n * unit, nil
}

// NormalizeTimeframe returns the canonical lower-case spelling of a timeframe
// token.
func NormalizeTimeframe(token string) string {
	return strings.ToLower(token)
}

// ParseTimestamp accepts a base-10 epoch-millisecond integer or an ISO-8601
// date/date-time and returns epoch milliseconds, truncating sub-millisecond
// precision.
func ParseTimestamp(token string) (int64, error) {
	trimmed := strings.TrimSpace(token)
	if ms, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, invalid(KindInvalidTimestamp,
		"%q must be a Unix timestamp in milliseconds or an ISO-8601 datetime", token)
}

// ValidateRange checks bounds and ordering of an epoch-millisecond range.
func ValidateRange(start, end int64) (bucket.TimeRange, error) {
	if start < 0 || end < 0 {
		return bucket.TimeRange{}, invalid(KindNonNegativeRequired,
			"start_timestamp and end_timestamp must be non-negative integers")
	}
	if start > end {
		return bucket.TimeRange{}, invalid(KindRangeOrderInvalid,
			"start_timestamp must be before end_timestamp")
	}
	return bucket.TimeRange{StartMs: start, EndMs: end}, nil
}

// ParseRange parses both raw bounds and validates the resulting range.
func ParseRange(startRaw, endRaw string) (bucket.TimeRange, error) {
	start, err := ParseTimestamp(startRaw)
	if err != nil {
		return bucket.TimeRange{}, err
	}
	end, err := ParseTimestamp(endRaw)
	if err != nil {
		return bucket.TimeRange{}, err
	}
	return ValidateRange(start, end)
}

// Mode selects how liquidation orders are looked up.
type Mode int

const (
	ModeTimestampRange Mode = iota + 1
	ModeLimit
)

func (m Mode) String() string {
	switch m {
	case ModeTimestampRange:
		return "range"
	case ModeLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// ValidateOrdersMode requires exactly one of a full timestamp pair or a limit.
func ValidateOrdersMode(hasStart, hasEnd, hasLimit bool) (Mode, error) {
	if hasStart != hasEnd {
		return 0, invalid(KindIncompleteTimestampPair,
			"Both start_timestamp and end_timestamp must be provided together")
	}
	hasRange := hasStart && hasEnd
	switch {
	case hasRange && hasLimit:
		return 0, invalid(KindMixedModeNotAllowed, "Cannot provide both timestamp range and limit")
	case hasRange:
		return ModeTimestampRange, nil
	case hasLimit:
		return ModeLimit, nil
	default:
		return 0, invalid(KindNoModeSelected, "Either provide both timestamps or a limit parameter")
	}
}

// NormalizeSymbol returns the lower-cased symbol used in queries. Stored
// symbols are matched case-insensitively against it.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if s == "" {
		return "", invalid(KindMissingSymbol, "symbol is required")
	}
	return s, nil
}

// ParseBoundedInt parses an optional integer query parameter. An empty raw
// value yields def with present=false.
func ParseBoundedInt(name, raw string, def, min, max int) (value int, present bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def, false, nil
	}
	n, convErr := strconv.Atoi(trimmed)
	if convErr != nil {
		return 0, true, invalid(KindInvalidPagination, "%s must be an integer", name)
	}
	if n < min || n > max {
		return 0, true, invalid(KindInvalidPagination, "%s must be between %d and %d", name, min, max)
	}
	return n, true, nil
}
