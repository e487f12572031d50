// Package domain contains the typed records shared across the monitor.
// Derived numeric fields that can legitimately be unknown (failed solve,
// missing peer group) are pointers; raw feed numerics default to zero so
// downstream arithmetic stays total.
package domain

import "time"

// BondReference is a static per-symbol record from the reference source.
// Immutable between reference reloads.
type BondReference struct {
	Symbol         string    `json:"symbol"`
	CouponRate     float64   `json:"coupon_rate"` // annual percent, 7.54 means 7.54%
	RedemptionDate time.Time `json:"redemption_date"`
}

// Quote is a live top-of-book snapshot for one instrument. All prices are
// per-100 face value. Missing numeric fields decode to zero, never null.
type Quote struct {
	Symbol          string  `json:"symbol"`
	Series          string  `json:"series"`
	Bid             float64 `json:"bid"`
	BidQty          float64 `json:"bid_qty"`
	Ask             float64 `json:"ask"`
	AskQty          float64 `json:"ask_qty"`
	LastTradedPrice float64 `json:"last_traded_price"`
	VWAP            float64 `json:"vwap"`
	Volume          float64 `json:"volume"`
}

// PricedBond is the join of BondReference and Quote plus every derived
// field for one refresh cycle. Snapshots are rebuilt wholesale each cycle
// and never mutated in place.
type PricedBond struct {
	Symbol         string    `json:"symbol"`
	Series         string    `json:"series"`
	CouponRate     float64   `json:"coupon_rate"`
	RedemptionDate time.Time `json:"redemption_date"`

	Bid             float64 `json:"bid"`
	Ask             float64 `json:"ask"`
	LastTradedPrice float64 `json:"last_traded_price"`
	VWAP            float64 `json:"vwap"`
	Volume          float64 `json:"volume"`
	Spread          float64 `json:"spread"`

	YearsToMaturity float64   `json:"years_to_maturity"`
	LastCouponDate  time.Time `json:"last_coupon_date"`
	DaysSinceCoupon int       `json:"days_since_coupon"`
	AccruedInterest float64   `json:"accrued_interest"`
	DirtyPrice      float64   `json:"dirty_price"`
	CleanPrice      float64   `json:"clean_price"`

	YTM              *float64 `json:"ytm"`       // from traded clean price
	DirtyYTM         *float64 `json:"dirty_ytm"` // from traded dirty price
	BidYTM           *float64 `json:"bid_ytm"`   // from bid-derived clean price
	AskYTM           *float64 `json:"ask_ytm"`   // from ask-derived clean price
	RelativeValueBps *float64 `json:"relative_value_bps"`
}

// FeedStatus classifies the outcome of a quote fetch so the UI can tell
// "no data because blocked" from "no data because the feed was empty".
type FeedStatus string

const (
	FeedOK          FeedStatus = "ok"
	FeedEmpty       FeedStatus = "empty"
	FeedUnavailable FeedStatus = "unavailable"
)

// Snapshot is one atomic refresh-cycle result.
type Snapshot struct {
	Bonds          []PricedBond `json:"bonds"`
	SettlementDate time.Time    `json:"settlement_date"`
	FetchedAt      time.Time    `json:"fetched_at"`
	FeedStatus     FeedStatus   `json:"feed_status"`
	FeedError      string       `json:"feed_error,omitempty"`
}

// SignalType classifies an opportunity-scanner signal.
type SignalType string

const (
	SignalBuy    SignalType = "BUY"
	SignalSell   SignalType = "SELL"
	SignalVolume SignalType = "VOLUME"
	SignalLiquid SignalType = "LIQUID"
)

// Signal is one ranked scanner finding. Priority is signal-type specific
// (yield deviation, volume multiple, or spread tightness) but signals from
// all bonds are pooled and sorted on it descending.
type Signal struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Series      string     `json:"series"`
	Type        SignalType `json:"type"`
	Priority    float64    `json:"priority"`
	Value       float64    `json:"value"` // the deviation / multiple / spread behind the signal
	Message     string     `json:"message"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// ScanParams are the user-facing scanner thresholds.
type ScanParams struct {
	YieldThreshold   float64 `json:"yield_threshold" validate:"gte=0"`   // percent deviation from history
	VolumeMultiplier float64 `json:"volume_multiplier" validate:"gte=0"` // multiple of historical volume
	MinVolume        float64 `json:"min_volume" validate:"gte=0"`
	TopN             int     `json:"top_n" validate:"gt=0,lte=500"`
}

// AlertSide is the side of the book a price alert watches.
type AlertSide string

const (
	AlertBuy  AlertSide = "BUY"  // watches ask
	AlertSell AlertSide = "SELL" // watches bid
)

// AlertStatus is the derived alert state.
type AlertStatus string

const (
	AlertNone AlertStatus = "NONE"
	AlertFar  AlertStatus = "FAR"
	AlertNear AlertStatus = "NEAR"
	AlertHit  AlertStatus = "HIT"
)

// AlertConfig is the per-symbol user alert configuration. LastStatus is
// derived on every evaluation and persisted so the notifier process can
// edge-trigger on fresh HIT transitions. The json names are the on-disk
// document contract shared with cmd/notifier.
type AlertConfig struct {
	Side       AlertSide   `json:"side" validate:"oneof=BUY SELL"`
	Target     float64     `json:"target" validate:"gte=0"`
	Tolerance  float64     `json:"tolerance" validate:"gte=0"`
	LastStatus AlertStatus `json:"last_status"`
}

// YieldHistoryPoint is the daily first-observation record per symbol.
type YieldHistoryPoint struct {
	Date   string   `json:"date"` // YYYY-MM-DD
	Symbol string   `json:"symbol"`
	BidYTM *float64 `json:"bid_ytm"`
	AskYTM *float64 `json:"ask_ytm"`
	Volume float64  `json:"volume"`
}

// HistoryAverages are trailing means over the retained history window.
// A sub-average with zero data points is nil.
type HistoryAverages struct {
	BidAvg    *float64 `json:"bid_avg"`
	AskAvg    *float64 `json:"ask_avg"`
	VolumeAvg *float64 `json:"volume_avg"`
}

// Float64Ptr returns a pointer to v. Convenience for nullable derived fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
