// Package reference loads, normalizes and caches the static per-symbol
// bond reference data (coupon rate, redemption date).
package reference

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// RawRow is one unvalidated row from the reference source.
type RawRow struct {
	Symbol         string
	CouponRate     string
	RedemptionDate string
}

// Day-first layouts observed in reference exports.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"2006-01-02", // already-normalized rows round-trip through here too
}

// Symbols sometimes embed the coupon rate, e.g. "7.54%GS2036".
var rateSymbolRe = regexp.MustCompile(`^(\d+)(?:\.(\d+))?%(.*)$`)

// CanonicalSymbol normalizes a symbol: uppercase, whitespace stripped, and
// percent-rate-embedded notations collapsed ("7.54%GS2036" -> "754GS2036").
// Idempotent: a canonical symbol passes through unchanged.
func CanonicalSymbol(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if m := rateSymbolRe.FindStringSubmatch(s); m != nil {
		s = m[1] + m[2] + m[3]
	}
	return s
}

// ParseRedemptionDate parses a day-first redemption date string.
func ParseRedemptionDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Normalize converts raw rows into typed records. Rows with unparseable
// dates or coupon rates are dropped and logged; they never abort the batch.
// Maturity filtering happens per refresh cycle in the pricing join, since
// the settlement date moves while this cache stands for hours.
func Normalize(rows []RawRow, log zerolog.Logger) []domain.BondReference {
	refs := make([]domain.BondReference, 0, len(rows))
	for _, row := range rows {
		symbol := CanonicalSymbol(row.Symbol)
		if symbol == "" {
			continue
		}

		coupon, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(row.CouponRate), "%"), 64)
		if err != nil {
			log.Warn().Str("symbol", symbol).Str("coupon", row.CouponRate).Msg("Dropping reference row with unparseable coupon")
			continue
		}

		redemption, ok := ParseRedemptionDate(row.RedemptionDate)
		if !ok {
			log.Warn().Str("symbol", symbol).Str("date", row.RedemptionDate).Msg("Dropping reference row with unparseable redemption date")
			continue
		}

		refs = append(refs, domain.BondReference{
			Symbol:         symbol,
			CouponRate:     coupon,
			RedemptionDate: redemption,
		})
	}
	return refs
}
