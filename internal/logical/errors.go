package logical

import "fmt"

// Error represents a logical-planning failure. These are report-fixable:
// the caller asked for something the model graph cannot satisfy, and the
// error names the offending table, column, measure or suffix.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Report names the report being planned.
	Report string

	// Entity, Column, Measure, Suffix name the offending object where
	// applicable.
	Entity  string
	Column  string
	Measure string
	Suffix  string

	// From and To name the endpoints for join errors.
	From string
	To   string

	// Message carries additional context.
	Message string

	// Cause is the underlying graph error, if any.
	Cause error
}

// ErrorCode categorizes logical-planning errors.
type ErrorCode string

const (
	// ErrCodeEmptyFrom indicates a report with no entities in its from list.
	ErrCodeEmptyFrom ErrorCode = "EMPTY_FROM"

	// ErrCodeUnknownEntity indicates the report names an entity absent from
	// the graph.
	ErrCodeUnknownEntity ErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeUnknownMeasure indicates the report names a measure absent from
	// every entity in its from list.
	ErrCodeUnknownMeasure ErrorCode = "UNKNOWN_MEASURE"

	// ErrCodeNoJoinPath indicates two requested entities are unreachable
	// from each other.
	ErrCodeNoJoinPath ErrorCode = "NO_JOIN_PATH"

	// ErrCodeUnknownTimeSuffix indicates an unrecognized time-intelligence
	// suffix.
	ErrCodeUnknownTimeSuffix ErrorCode = "UNKNOWN_TIME_SUFFIX"

	// ErrCodeMissingCalendar indicates a time-intelligence measure was
	// requested but no calendar column could be resolved.
	ErrCodeMissingCalendar ErrorCode = "MISSING_CALENDAR_DIMENSION"

	// ErrCodeInvalidReference indicates a malformed column or sort
	// reference.
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"
)

func (e *Error) Error() string {
	prefix := "logical plan"
	if e.Report != "" {
		prefix = fmt.Sprintf("logical plan for report %q", e.Report)
	}
	switch e.Code {
	case ErrCodeEmptyFrom:
		return fmt.Sprintf("%s: %s: report has an empty from list; add at least one entity", prefix, e.Code)
	case ErrCodeUnknownEntity:
		return fmt.Sprintf("%s: %s: entity %q is not in the model; fix the report's from list or add the entity upstream", prefix, e.Code, e.Entity)
	case ErrCodeUnknownMeasure:
		return fmt.Sprintf("%s: %s: measure %q is not defined on any entity in the from list", prefix, e.Code, e.Measure)
	case ErrCodeNoJoinPath:
		return fmt.Sprintf("%s: %s: no join path between %q and %q; the report combines unrelated entities or the model is missing a relationship", prefix, e.Code, e.From, e.To)
	case ErrCodeUnknownTimeSuffix:
		return fmt.Sprintf("%s: %s: unrecognized time suffix %q on measure %q", prefix, e.Code, e.Suffix, e.Measure)
	case ErrCodeMissingCalendar:
		return fmt.Sprintf("%s: %s: no calendar column: give use_date or add a date column to entity %q", prefix, e.Code, e.Entity)
	case ErrCodeInvalidReference:
		return fmt.Sprintf("%s: %s: %s", prefix, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Code, e.Message)
}

// Unwrap exposes the underlying graph error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }
