package bondmath

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLastCouponDate(t *testing.T) {
	redemption := date(2036, time.April, 15)

	tests := []struct {
		name       string
		settlement time.Time
		want       time.Time
	}{
		{
			name:       "mid coupon period",
			settlement: date(2026, time.May, 20),
			want:       date(2026, time.April, 15),
		},
		{
			name:       "settlement on coupon date",
			settlement: date(2026, time.April, 15),
			want:       date(2026, time.April, 15),
		},
		{
			name:       "day before next coupon",
			settlement: date(2026, time.October, 14),
			want:       date(2026, time.April, 15),
		},
		{
			name:       "day of the october coupon",
			settlement: date(2026, time.October, 15),
			want:       date(2026, time.October, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastCouponDate(redemption, tt.settlement))
		})
	}
}

func TestAccruedInterest(t *testing.T) {
	// Zero exactly when settlement sits on the coupon date.
	assert.Zero(t, AccruedInterest(7.54, 0))

	// 35 days at 7.54% annual over a 360-day year.
	assert.InDelta(t, 35.0*7.54/360.0, AccruedInterest(7.54, 35), 1e-12)

	// Monotonically increasing in days since coupon.
	prev := 0.0
	for days := 1; days <= 180; days++ {
		ai := AccruedInterest(7.54, days)
		assert.Greater(t, ai, prev, "accrued not monotonic at day %d", days)
		prev = ai
	}
}

func TestCleanPriceIdentity(t *testing.T) {
	tests := []struct {
		name    string
		dirty   float64
		accrued float64
	}{
		{"typical", 100.10, 0.733},
		{"zero accrued", 99.80, 0},
		{"accrued exceeds price goes negative", 0.50, 0.733},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean := CleanPrice(tt.dirty, tt.accrued)
			// Exact identity, not an approximation.
			assert.Equal(t, tt.dirty-tt.accrued, clean)
		})
	}
}
