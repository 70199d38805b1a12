package params

import "fmt"

// Kind names a class of request validation failure. The value is what API
// clients see in the "error" field.
type Kind string

const (
	KindInvalidTimeframe        Kind = "InvalidTimeframe"
	KindInvalidTimestamp        Kind = "InvalidTimestamp"
	KindNonNegativeRequired     Kind = "NonNegativeRequired"
	KindRangeOrderInvalid       Kind = "RangeOrderInvalid"
	KindMixedModeNotAllowed     Kind = "MixedModeNotAllowed"
	KindIncompleteTimestampPair Kind = "IncompleteTimestampPair"
	KindNoModeSelected          Kind = "NoModeSelected"
	KindMissingSymbol           Kind = "MissingSymbol"
	KindInvalidPagination       Kind = "InvalidPagination"
)

// ValidationError is returned for any caller-supplied parameter that fails
// validation. errors.Is matches on Kind only.
type ValidationError struct {
	Kind   Kind
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "params: " + string(e.Kind)
	}
	return fmt.Sprintf("params: %s: %s", e.Kind, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidTimeframe        = &ValidationError{Kind: KindInvalidTimeframe}
	ErrInvalidTimestamp        = &ValidationError{Kind: KindInvalidTimestamp}
	ErrNonNegativeRequired     = &ValidationError{Kind: KindNonNegativeRequired}
	ErrRangeOrderInvalid       = &ValidationError{Kind: KindRangeOrderInvalid}
	ErrMixedModeNotAllowed     = &ValidationError{Kind: KindMixedModeNotAllowed}
	ErrIncompleteTimestampPair = &ValidationError{Kind: KindIncompleteTimestampPair}
	ErrNoModeSelected          = &ValidationError{Kind: KindNoModeSelected}
	ErrMissingSymbol           = &ValidationError{Kind: KindMissingSymbol}
	ErrInvalidPagination       = &ValidationError{Kind: KindInvalidPagination}
)

func invalid(kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
