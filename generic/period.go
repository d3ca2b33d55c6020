package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive calendar window
// =============================================================================

// Period is the inclusive window [Start, End] of calendar days. Reward
// evaluation always uses a calendar month.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthOf returns the calendar month containing the given day.
func MonthOf(tp TimePoint) Period {
	return Period{
		Start: StartOfMonth(tp.Year(), tp.Month()),
		End:   EndOfMonth(tp.Year(), tp.Month()),
	}
}

// ParseMonth parses a "2006-01" month key into its calendar-month period.
func ParseMonth(key string) (Period, error) {
	t, err := time.Parse(MonthLayout, key)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q: %w", key, err)
	}
	return MonthOf(DateOf(t)), nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsTime reports whether the UTC day of t lies in the period.
func (p Period) ContainsTime(t time.Time) bool {
	return p.Contains(DateOf(t))
}

// Key returns the month key of the period start.
func (p Period) Key() string { return p.Start.MonthKey() }

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
