package bondmath

import "time"

// LastCouponDate returns the latest semiannual coupon date on or before
// settlement, found by stepping back from the redemption date in 6-month
// intervals. Callers guarantee redemption is after settlement (matured
// bonds are excluded upstream).
func LastCouponDate(redemption, settlement time.Time) time.Time {
	d := redemption
	for d.After(settlement) {
		d = d.AddDate(0, -6, 0)
	}
	return d
}

// AccruedInterest prorates the annual coupon rate over a 360-day year:
// daysSinceCoupon * couponRate / 360. This is the flat 30/360 spreadsheet
// convention, not a days-in-period semiannual proration.
func AccruedInterest(couponRate float64, daysSinceCoupon int) float64 {
	return float64(daysSinceCoupon) * couponRate / 360.0
}

// CleanPrice subtracts accrued interest from a dirty (traded) price. The
// result may go negative on a stale or bad quote; it is surfaced as-is and
// rejected later by the yield solver, never clamped here.
func CleanPrice(dirtyPrice, accruedInterest float64) float64 {
	return dirtyPrice - accruedInterest
}
