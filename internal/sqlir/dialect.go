package sqlir

import (
	"fmt"
	"strings"
)

// Dialect is the target SQL flavor. It affects surface syntax (quoting,
// date arithmetic) and window-function availability only - never join order
// or cost decisions, except the window-versus-self-join strategy choice.
type Dialect string

const (
	DialectDuckDB    Dialect = "duckdb"
	DialectPostgres  Dialect = "postgres"
	DialectSnowflake Dialect = "snowflake"

	// DialectMySQL56 targets MySQL before 8.0, which has no window
	// functions; time-intelligence measures fall back to self-joins.
	DialectMySQL56 Dialect = "mysql56"
)

// Dialects lists every supported dialect.
var Dialects = []Dialect{DialectDuckDB, DialectPostgres, DialectSnowflake, DialectMySQL56}

// ParseDialect resolves a dialect name, case-insensitively.
func ParseDialect(name string) (Dialect, error) {
	for _, d := range Dialects {
		if strings.EqualFold(name, string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dialect %q: must be one of %v", name, Dialects)
}

// SupportsWindowFunctions reports whether the dialect can evaluate
// OVER(...) expressions.
func (d Dialect) SupportsWindowFunctions() bool {
	return d != DialectMySQL56
}

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL56 {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString writes a string literal.
func (d Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// extract writes a date-part extraction over an already-rendered operand.
func (d Dialect) extract(part DatePart, operand string) string {
	if d == DialectMySQL56 {
		// MySQL has EXTRACT too, but the bare functions are idiomatic.
		return fmt.Sprintf("%s(%s)", strings.ToUpper(string(part)), operand)
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", strings.ToUpper(string(part)), operand)
}

// dateSub writes operand shifted back by n units.
func (d Dialect) dateSub(operand string, n int, unit string) string {
	switch d {
	case DialectMySQL56:
		return fmt.Sprintf("DATE_SUB(%s, INTERVAL %d %s)", operand, n, strings.ToUpper(unit))
	case DialectSnowflake:
		return fmt.Sprintf("DATEADD(%s, -%d, %s)", strings.ToUpper(unit), n, operand)
	default:
		return fmt.Sprintf("%s - INTERVAL '%d %s'", operand, n, strings.ToLower(unit))
	}
}
