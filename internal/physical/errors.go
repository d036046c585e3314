package physical

import "fmt"

// Error represents a physical-planning failure. Unlike logical errors these
// are usually environment-fixable: the report is sound but no execution
// strategy is available for the target dialect or join shape.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Dialect names the target dialect for strategy errors.
	Dialect string

	// Measure names the offending measure where applicable.
	Measure string

	// Entity names the table a join order could not reach.
	Entity string

	// Message carries additional context.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// ErrorCode categorizes physical-planning errors.
type ErrorCode string

const (
	// ErrCodeNoValidStrategy indicates no execution strategy exists for a
	// node, e.g. a window function on a dialect without window support and
	// the self-join fallback disabled.
	ErrCodeNoValidStrategy ErrorCode = "NO_VALID_STRATEGY"

	// ErrCodeNoValidJoinOrder indicates no join order connects every
	// requested table through existing relationships.
	ErrCodeNoValidJoinOrder ErrorCode = "NO_VALID_JOIN_ORDER"
)

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNoValidStrategy:
		if e.Measure != "" {
			return fmt.Sprintf("physical plan: %s: no strategy for time measure %q on dialect %q: %s", e.Code, e.Measure, e.Dialect, e.Message)
		}
		return fmt.Sprintf("physical plan: %s: %s", e.Code, e.Message)
	case ErrCodeNoValidJoinOrder:
		if e.Entity != "" {
			return fmt.Sprintf("physical plan: %s: no join order reaches %q; the model is missing a relationship", e.Code, e.Entity)
		}
		return fmt.Sprintf("physical plan: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("physical plan: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }
