package logical

import (
	"regexp"
	"strconv"
	"strings"
)

// PeriodUnit is a calendar period for time-intelligence modifiers.
type PeriodUnit string

const (
	UnitYear    PeriodUnit = "year"
	UnitQuarter PeriodUnit = "quarter"
	UnitMonth   PeriodUnit = "month"
	UnitWeek    PeriodUnit = "week"
)

// RollingAgg is the aggregate applied over a rolling frame.
type RollingAgg string

const (
	RollSum RollingAgg = "sum"
	RollAvg RollingAgg = "avg"
)

// TimeModifier is the semantic meaning of a time-intelligence suffix.
//
// Sealed: the emitter derives window frames (or self-join predicates) from
// these shapes with an exhaustive switch.
type TimeModifier interface {
	timeModifier()
}

// ToDate accumulates from the start of the current period to the current
// row: ytd, qtd, mtd.
type ToDate struct {
	Unit PeriodUnit
}

func (ToDate) timeModifier() {}

// Prior reads the value from N periods back: prior_year, prior_month, ...
type Prior struct {
	Periods int
	Unit    PeriodUnit
}

func (Prior) timeModifier() {}

// Growth is (current − prior) / prior against the same prior period.
type Growth struct {
	Prior Prior
}

func (Growth) timeModifier() {}

// Delta is current − prior against the same prior period.
type Delta struct {
	Prior Prior
}

func (Delta) timeModifier() {}

// Rolling aggregates the trailing N periods including the current one.
type Rolling struct {
	Periods int
	Unit    PeriodUnit
	Agg     RollingAgg
}

func (Rolling) timeModifier() {}

var rollingPattern = regexp.MustCompile(`^rolling_(\d+)m(_avg)?$`)

// ParseTimeSuffix maps a time-intelligence suffix to its modifier.
//
// Recognized forms: ytd/qtd/mtd; prior_year/prior_quarter/prior_month/
// prior_week; the same prior forms (or a bare period word) with _growth or
// _delta appended; rolling_Nm and rolling_Nm_avg. Anything else fails with
// UNKNOWN_TIME_SUFFIX naming the measure.
func ParseTimeSuffix(measure, suffix string) (TimeModifier, error) {
	s := strings.ToLower(suffix)

	switch s {
	case "ytd":
		return ToDate{Unit: UnitYear}, nil
	case "qtd":
		return ToDate{Unit: UnitQuarter}, nil
	case "mtd":
		return ToDate{Unit: UnitMonth}, nil
	}

	if unit, ok := priorUnit(s); ok {
		return Prior{Periods: 1, Unit: unit}, nil
	}

	if base, found := strings.CutSuffix(s, "_growth"); found {
		if unit, ok := priorUnit(base); ok {
			return Growth{Prior: Prior{Periods: 1, Unit: unit}}, nil
		}
	}
	if base, found := strings.CutSuffix(s, "_delta"); found {
		if unit, ok := priorUnit(base); ok {
			return Delta{Prior: Prior{Periods: 1, Unit: unit}}, nil
		}
	}

	if m := rollingPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			agg := RollSum
			if m[2] != "" {
				agg = RollAvg
			}
			return Rolling{Periods: n, Unit: UnitMonth, Agg: agg}, nil
		}
	}

	return nil, &Error{Code: ErrCodeUnknownTimeSuffix, Measure: measure, Suffix: suffix}
}

// priorUnit resolves "prior_year"-style and bare period words to a unit.
func priorUnit(s string) (PeriodUnit, bool) {
	s = strings.TrimPrefix(s, "prior_")
	switch s {
	case "year":
		return UnitYear, true
	case "quarter":
		return UnitQuarter, true
	case "month":
		return UnitMonth, true
	case "week":
		return UnitWeek, true
	}
	return "", false
}
