// Package pricing builds the per-cycle PricedBond snapshot: the join of
// live quotes and cached reference data plus every derived valuation field.
package pricing

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/internal/modules/reference"
	"github.com/compositedge/bondmonitor/pkg/bondmath"
)

// Service derives valuations for one refresh cycle at a time.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new pricing service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "pricing").Logger(),
	}
}

// BuildSnapshot joins quotes with reference data and derives settlement,
// accrued interest, clean price and the YTM variants. The settlement date
// is resolved once from now and held fixed for every bond in the cycle.
//
// Quotes without reference data, and bonds already matured relative to the
// settlement date, are excluded. Failed yield solves leave nil fields on
// that one bond and never abort the batch.
func (s *Service) BuildSnapshot(refs map[string]domain.BondReference, quotes []domain.Quote, now time.Time) domain.Snapshot {
	settlement := bondmath.SettlementDate(now)

	bonds := make([]domain.PricedBond, 0, len(quotes))
	for _, q := range quotes {
		symbol := reference.CanonicalSymbol(q.Symbol)
		ref, ok := refs[symbol]
		if !ok {
			continue
		}

		if b, ok := s.price(ref, q, settlement); ok {
			bonds = append(bonds, b)
		}
	}

	// Most-active first, as on the market page; symbol breaks ties so the
	// order is stable across cycles.
	sort.Slice(bonds, func(i, j int) bool {
		if bonds[i].Volume != bonds[j].Volume {
			return bonds[i].Volume > bonds[j].Volume
		}
		return bonds[i].Symbol < bonds[j].Symbol
	})

	return domain.Snapshot{
		Bonds:          bonds,
		SettlementDate: settlement,
		FetchedAt:      now,
		FeedStatus:     domain.FeedOK,
	}
}

// price derives one PricedBond. The bool is false when the bond is
// excluded (matured or maturing before settlement).
func (s *Service) price(ref domain.BondReference, q domain.Quote, settlement time.Time) (domain.PricedBond, bool) {
	years := ref.RedemptionDate.Sub(settlement).Hours() / 24.0 / 365.0
	if years <= 0 {
		return domain.PricedBond{}, false
	}

	lastCoupon := bondmath.LastCouponDate(ref.RedemptionDate, settlement)
	daysSinceCoupon := bondmath.Days360(lastCoupon, settlement)
	accrued := bondmath.AccruedInterest(ref.CouponRate, daysSinceCoupon)

	// Traded price, falling back to VWAP when nothing printed yet.
	dirty := q.LastTradedPrice
	if dirty == 0 {
		dirty = q.VWAP
	}
	clean := bondmath.CleanPrice(dirty, accrued)

	b := domain.PricedBond{
		Symbol:         ref.Symbol,
		Series:         q.Series,
		CouponRate:     ref.CouponRate,
		RedemptionDate: ref.RedemptionDate,

		Bid:             q.Bid,
		Ask:             q.Ask,
		LastTradedPrice: q.LastTradedPrice,
		VWAP:            q.VWAP,
		Volume:          q.Volume,
		Spread:          q.Ask - q.Bid,

		YearsToMaturity: years,
		LastCouponDate:  lastCoupon,
		DaysSinceCoupon: daysSinceCoupon,
		AccruedInterest: accrued,
		DirtyPrice:      dirty,
		CleanPrice:      clean,

		YTM:      solve(years, ref.CouponRate, clean),
		DirtyYTM: solve(years, ref.CouponRate, dirty),
		BidYTM:   solve(years, ref.CouponRate, bondmath.CleanPrice(q.Bid, accrued)),
		AskYTM:   solve(years, ref.CouponRate, bondmath.CleanPrice(q.Ask, accrued)),
	}
	return b, true
}

// YTMForPrice solves the yield for an arbitrary user-supplied price against
// an already-priced bond. Same contract as the snapshot solves: nil when no
// plausible yield exists.
func (s *Service) YTMForPrice(b domain.PricedBond, price float64) *float64 {
	return solve(b.YearsToMaturity, b.CouponRate, price)
}

// solve adapts the solver's error contract to a nullable field.
func solve(years, coupon, price float64) *float64 {
	ytm, err := bondmath.YTM(years, coupon, price)
	if err != nil {
		return nil
	}
	return domain.Float64Ptr(ytm)
}
