package pricing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/pkg/bondmath"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRefs() map[string]domain.BondReference {
	return map[string]domain.BondReference{
		"754GS2036": {Symbol: "754GS2036", CouponRate: 7.54, RedemptionDate: date(2036, time.April, 15)},
		"OLD2020":   {Symbol: "OLD2020", CouponRate: 8.0, RedemptionDate: date(2020, time.January, 1)},
	}
}

func newService() *Service {
	return NewService(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestBuildSnapshotEndToEnd(t *testing.T) {
	// Tuesday 2026-05-19 trades settle Wednesday 2026-05-20.
	now := date(2026, time.May, 19)

	quotes := []domain.Quote{
		{Symbol: "754GS2036", Series: "GS", Bid: 99.80, Ask: 100.10, VWAP: 99.95, Volume: 500},
	}

	snap := newService().BuildSnapshot(testRefs(), quotes, now)

	assert.Equal(t, date(2026, time.May, 20), snap.SettlementDate)
	assert.Equal(t, domain.FeedOK, snap.FeedStatus)
	require.Len(t, snap.Bonds, 1)

	b := snap.Bonds[0]
	assert.Equal(t, "754GS2036", b.Symbol)

	// Last semiannual coupon before settlement: 2026-04-15, 35 days on 30/360.
	assert.Equal(t, date(2026, time.April, 15), b.LastCouponDate)
	assert.Equal(t, 35, b.DaysSinceCoupon)
	assert.InDelta(t, 35.0*7.54/360.0, b.AccruedInterest, 1e-12)

	// No traded price printed, so VWAP is the dirty price.
	assert.Equal(t, 99.95, b.DirtyPrice)
	// Exact identity.
	assert.Equal(t, b.DirtyPrice-b.AccruedInterest, b.CleanPrice)

	assert.InDelta(t, 0.30, b.Spread, 1e-12)
	assert.InDelta(t, 9.912, b.YearsToMaturity, 0.01)

	// Slight discount to par: yield a touch above the coupon.
	require.NotNil(t, b.YTM)
	assert.Greater(t, *b.YTM, 7.54)
	assert.Less(t, *b.YTM, 8.0)

	// The solved yield reprices the bond to its clean price.
	assert.InDelta(t, b.CleanPrice, bondmath.PriceFromYield(b.YearsToMaturity, b.CouponRate, *b.YTM), 1e-6)

	// Bid below ask means the bid-derived yield is the higher one.
	require.NotNil(t, b.BidYTM)
	require.NotNil(t, b.AskYTM)
	assert.Greater(t, *b.BidYTM, *b.AskYTM)

	require.NotNil(t, b.DirtyYTM)
	assert.Less(t, *b.DirtyYTM, *b.YTM)
}

func TestBuildSnapshotExcludesMaturedAndUnknown(t *testing.T) {
	now := date(2026, time.May, 19)

	quotes := []domain.Quote{
		{Symbol: "OLD2020", Series: "GS", VWAP: 100, Volume: 10},  // matured
		{Symbol: "NOREF2030", Series: "GS", VWAP: 99, Volume: 10}, // no reference row
	}

	snap := newService().BuildSnapshot(testRefs(), quotes, now)
	assert.Empty(t, snap.Bonds)
}

func TestBuildSnapshotJoinsOnCanonicalSymbol(t *testing.T) {
	now := date(2026, time.May, 19)

	quotes := []domain.Quote{
		{Symbol: "7.54%GS2036", Series: "GS", VWAP: 99.95, Volume: 500},
	}

	snap := newService().BuildSnapshot(testRefs(), quotes, now)
	require.Len(t, snap.Bonds, 1)
	assert.Equal(t, "754GS2036", snap.Bonds[0].Symbol)
}

func TestBuildSnapshotNullYieldOnBadQuote(t *testing.T) {
	now := date(2026, time.May, 19)

	// No prices at all: clean price goes negative (accrued > 0 dirty) and
	// every solve degrades to nil rather than aborting the bond.
	quotes := []domain.Quote{
		{Symbol: "754GS2036", Series: "GS", Volume: 50},
	}

	snap := newService().BuildSnapshot(testRefs(), quotes, now)
	require.Len(t, snap.Bonds, 1)

	b := snap.Bonds[0]
	assert.Negative(t, b.CleanPrice)
	assert.Nil(t, b.YTM)
	assert.Nil(t, b.DirtyYTM)
	assert.Nil(t, b.BidYTM)
	assert.Nil(t, b.AskYTM)
}

func TestBuildSnapshotSortsByVolumeDescending(t *testing.T) {
	now := date(2026, time.May, 19)
	refs := testRefs()
	refs["717GS2028"] = domain.BondReference{Symbol: "717GS2028", CouponRate: 7.17, RedemptionDate: date(2028, time.January, 8)}

	quotes := []domain.Quote{
		{Symbol: "754GS2036", Series: "GS", VWAP: 99.95, Volume: 500},
		{Symbol: "717GS2028", Series: "GS", VWAP: 100.2, Volume: 1500},
	}

	snap := newService().BuildSnapshot(refs, quotes, now)
	require.Len(t, snap.Bonds, 2)
	assert.Equal(t, "717GS2028", snap.Bonds[0].Symbol)
	assert.Equal(t, "754GS2036", snap.Bonds[1].Symbol)
}

func TestYTMForPrice(t *testing.T) {
	now := date(2026, time.May, 19)
	quotes := []domain.Quote{
		{Symbol: "754GS2036", Series: "GS", VWAP: 99.95, Volume: 500},
	}
	snap := newService().BuildSnapshot(testRefs(), quotes, now)
	require.Len(t, snap.Bonds, 1)

	svc := newService()
	b := snap.Bonds[0]

	got := svc.YTMForPrice(b, 95.0)
	require.NotNil(t, got)
	assert.Greater(t, *got, *b.YTM)

	assert.Nil(t, svc.YTMForPrice(b, 0))
	assert.Nil(t, svc.YTMForPrice(b, -10))
}
