package bondmath

import (
	"errors"
	"math"
)

// ErrNoSolution is returned when the yield solver cannot produce a
// plausible yield: non-positive price, years or coupon, Newton-Raphson
// non-convergence, or a result outside the sanity band.
var ErrNoSolution = errors.New("bondmath: no yield solution")

const (
	ytmTolerance = 1e-10
	ytmMaxIter   = 100

	// Per-period clamp for Newton steps. Annual equivalents comfortably
	// bracket the (-10%, +50%) sanity band below.
	ytmPeriodFloor   = -0.0499
	ytmPeriodCeiling = 0.30

	// Annualized results outside this open band are treated as solver
	// divergence artifacts, not real yields.
	ytmFloorPct   = -10.0
	ytmCeilingPct = 50.0
)

// YTM solves for the semiannual yield of a fixed-coupon bond and returns it
// annualized, in percent (2 * r * 100).
//
// The pricing identity is the standard periodic-coupon form with
// N = round(years * 2) semiannual periods:
//
//	price = Σ_{t=1}^{N} (coupon/2) / (1+r)^t + 100 / (1+r)^N
//
// annualCoupon is the annual percentage rate, price is per-100 face value.
// Newton-Raphson with the analytic derivative; the per-period rate is
// clamped each step so the discount factors stay finite.
func YTM(years, annualCoupon, price float64) (float64, error) {
	if price <= 0 || years <= 0 || annualCoupon <= 0 {
		return 0, ErrNoSolution
	}

	n := int(math.Round(years * 2))
	if n < 1 {
		// Under three months to redemption still prices as one stub period.
		n = 1
	}
	coupon := annualCoupon / 2.0

	// Initial guess: the coupon yield per period.
	r := clamp(annualCoupon/200.0, 0.001, ytmPeriodCeiling)

	for iter := 0; iter < ytmMaxIter; iter++ {
		p, dPdr := priceAndDeriv(r, coupon, n)
		f := p - price

		if math.Abs(f) < ytmTolerance {
			annual := 2.0 * r * 100.0
			if annual <= ytmFloorPct || annual >= ytmCeilingPct {
				return 0, ErrNoSolution
			}
			return annual, nil
		}
		if math.Abs(dPdr) < 1e-15 {
			return 0, ErrNoSolution
		}

		r = clamp(r-f/dPdr, ytmPeriodFloor, ytmPeriodCeiling)
	}

	return 0, ErrNoSolution
}

// PriceFromYield is the inverse of YTM: the theoretical per-100 price of a
// bond given its annualized yield in percent. Used for round-trip checks
// and the custom-price endpoint.
func PriceFromYield(years, annualCoupon, annualYieldPct float64) float64 {
	n := int(math.Round(years * 2))
	if n < 1 {
		n = 1
	}
	p, _ := priceAndDeriv(annualYieldPct/200.0, annualCoupon/2.0, n)
	return p
}

// priceAndDeriv returns the bond price and dPrice/dr at per-period rate r.
func priceAndDeriv(r, coupon float64, n int) (float64, float64) {
	var price, deriv float64
	for t := 1; t <= n; t++ {
		cf := coupon
		if t == n {
			cf += 100.0
		}
		tf := float64(t)
		price += cf / math.Pow(1.0+r, tf)
		deriv += -tf * cf / math.Pow(1.0+r, tf+1.0)
	}
	return price, deriv
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
