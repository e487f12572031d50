package bondmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYTMParBond(t *testing.T) {
	// A bond priced at par yields its coupon.
	ytm, err := YTM(5, 8.0, 100.0)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, ytm, 1e-6)
}

func TestYTMRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		years  float64
		coupon float64
		yield  float64
	}{
		{"discount long bond", 9.65, 7.54, 8.20},
		{"premium long bond", 9.65, 7.54, 6.80},
		{"short bond", 1.5, 5.0, 4.10},
		{"deep discount", 10.0, 6.0, 14.0},
		{"near-zero yield", 4.0, 3.0, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := PriceFromYield(tt.years, tt.coupon, tt.yield)
			got, err := YTM(tt.years, tt.coupon, price)
			require.NoError(t, err)
			assert.InDelta(t, tt.yield, got, tt.yield*1e-6+1e-9)
		})
	}
}

func TestYTMRejectsInvalidInputs(t *testing.T) {
	tests := []struct {
		name   string
		years  float64
		coupon float64
		price  float64
	}{
		{"zero price", 10, 7.5, 0},
		{"negative price", 10, 7.5, -2.5},
		{"zero years", 0, 7.5, 100},
		{"negative years", -1, 7.5, 100},
		{"zero coupon", 10, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := YTM(tt.years, tt.coupon, tt.price)
			assert.ErrorIs(t, err, ErrNoSolution)
		})
	}
}

func TestYTMSanityBand(t *testing.T) {
	// A near-worthless quote implies an absurd yield; the solver reports
	// no solution instead of returning the artifact.
	_, err := YTM(10, 8.0, 5.0)
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestYTMStubPeriod(t *testing.T) {
	// Under three months to redemption still solves as one stub period.
	ytm, err := YTM(0.1, 7.0, 101.0)
	require.NoError(t, err)
	assert.Less(t, ytm, 7.0)
	assert.Greater(t, ytm, -10.0)
}
