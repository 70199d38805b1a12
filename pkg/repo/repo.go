package repo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilExecutor indicates the repository was initialized without an executor.
var ErrNilExecutor = errors.New("repo: nil executor")

// Aggregation selects where bucket grouping runs.
type Aggregation string

const (
	// AggregateInDatabase pushes GROUP BY down to SQL.
	AggregateInDatabase Aggregation = "database"
	// AggregateInMemory fetches raw events and groups them in process.
	AggregateInMemory Aggregation = "memory"
)

// ParseAggregation normalizes a configured aggregation mode. Empty selects
// AggregateInDatabase.
func ParseAggregation(raw string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AggregateInDatabase:
		return AggregateInDatabase, nil
	case AggregateInMemory:
		return AggregateInMemory, nil
	default:
		return "", fmt.Errorf("repo: unknown aggregation mode %q", raw)
	}
}
