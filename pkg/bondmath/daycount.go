// Package bondmath implements the fixed-coupon bond arithmetic used by the
// monitor: 30/360 day counts, T+1 settlement dates, semiannual coupon
// schedules, accrued interest and yield-to-maturity solving.
//
// All prices are per-100 face value. All rates are annual percentages
// (7.54 means 7.54%).
package bondmath

import "time"

// Days360 returns the number of days between start and end under the US
// 30/360 convention: a start day-of-month of 31 is clamped to 30, and an
// end day-of-month of 31 is clamped to 30 only when the (clamped) start day
// is 30. Callers guarantee end >= start.
func Days360(start, end time.Time) int {
	d1 := start.Day()
	d2 := end.Day()

	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}

	return 360*(end.Year()-start.Year()) +
		30*(int(end.Month())-int(start.Month())) +
		(d2 - d1)
}
