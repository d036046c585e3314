package graph

import "fmt"

// Error represents a failed graph lookup or traversal.
//
// Graph errors always name the offending model object so the caller can
// tell whether the fix belongs in the report (a misspelled entity or
// measure) or in the model itself (a missing relationship).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Entity, Column, Measure name the offending object where applicable.
	Entity  string
	Column  string
	Measure string

	// From and To name the endpoints for path errors.
	From string
	To   string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any (e.g. the expression parser's
	// message for an invalid measure expression).
	Cause error
}

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeEntityNotFound indicates a referenced entity is not in the graph.
	ErrCodeEntityNotFound ErrorCode = "ENTITY_NOT_FOUND"

	// ErrCodeMeasureNotFound indicates a referenced measure is not in the graph.
	ErrCodeMeasureNotFound ErrorCode = "MEASURE_NOT_FOUND"

	// ErrCodeNoPathFound indicates two entities have no JOINS_TO path.
	ErrCodeNoPathFound ErrorCode = "NO_PATH_FOUND"

	// ErrCodeUnsafeJoinPath indicates a path would duplicate rows at the
	// caller's grain by traversing the one side of a one-to-many edge.
	ErrCodeUnsafeJoinPath ErrorCode = "UNSAFE_JOIN_PATH"

	// ErrCodeInvalidExpression indicates a measure's stored expression does
	// not parse.
	ErrCodeInvalidExpression ErrorCode = "INVALID_EXPRESSION"
)

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeEntityNotFound:
		return fmt.Sprintf("%s: entity %q is not in the model graph", e.Code, e.Entity)
	case ErrCodeMeasureNotFound:
		return fmt.Sprintf("%s: measure %q is not defined on entity %q", e.Code, e.Measure, e.Entity)
	case ErrCodeNoPathFound:
		return fmt.Sprintf("%s: no join path from %q to %q", e.Code, e.From, e.To)
	case ErrCodeUnsafeJoinPath:
		return fmt.Sprintf("%s: join path from %q to %q is unsafe: %s", e.Code, e.From, e.To, e.Message)
	case ErrCodeInvalidExpression:
		return fmt.Sprintf("%s: measure %q on entity %q: %v", e.Code, e.Measure, e.Entity, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

func entityNotFound(name string) *Error {
	return &Error{Code: ErrCodeEntityNotFound, Entity: name}
}
