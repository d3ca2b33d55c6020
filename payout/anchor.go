package payout

import (
	"time"

	"github.com/warp/payout-engine/generic"
)

// Canonical payout days.
const (
	midMonthPayDay = 15
	endMonthPayDay = 30
)

// FirstPayoutDate applies the date-anchoring rule to an anchor date. The
// first payout always falls in the month after the anchor:
//   - anchor day 1..15  -> the 15th
//   - anchor day 16..31 -> the 30th, or the last day when that month is February
//
// Every later event of a schedule is offset from this date by whole months.
func FirstPayoutDate(anchor generic.TimePoint) generic.TimePoint {
	next := generic.StartOfMonth(anchor.Year(), anchor.Month()).AddMonths(1)
	if anchor.Day() <= midMonthPayDay {
		return generic.NewTimePoint(next.Year(), next.Month(), midMonthPayDay)
	}
	if next.Month() == time.February {
		return generic.EndOfMonth(next.Year(), next.Month())
	}
	return generic.NewTimePoint(next.Year(), next.Month(), endMonthPayDay)
}
