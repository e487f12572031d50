package scanner

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compositedge/bondmonitor/internal/domain"
)

func newService() *Service {
	return NewService(zerolog.New(nil).Level(zerolog.Disabled))
}

func defaultParams() domain.ScanParams {
	return domain.ScanParams{
		YieldThreshold:   0.25,
		VolumeMultiplier: 2.0,
		MinVolume:        100,
		TopN:             20,
	}
}

func avgs(symbol string, bid, ask, volume *float64) map[string]domain.HistoryAverages {
	return map[string]domain.HistoryAverages{
		symbol: {BidAvg: bid, AskAvg: ask, VolumeAvg: volume},
	}
}

func bySignalType(signals []domain.Signal) map[domain.SignalType]domain.Signal {
	out := make(map[domain.SignalType]domain.Signal)
	for _, s := range signals {
		out[s.Type] = s
	}
	return out
}

func TestScanBuySignalStrictThreshold(t *testing.T) {
	now := time.Now()
	params := defaultParams()

	b := domain.PricedBond{
		Symbol: "754GS2036", Series: "GS", Volume: 500,
		AskYTM: domain.Float64Ptr(7.80),
	}

	// Deviation exactly at the threshold does not fire.
	atThreshold := avgs("754GS2036", nil, domain.Float64Ptr(7.55), nil)
	assert.Empty(t, newService().Scan([]domain.PricedBond{b}, atThreshold, params, now))

	// A hair above does.
	above := avgs("754GS2036", nil, domain.Float64Ptr(7.54), nil)
	signals := newService().Scan([]domain.PricedBond{b}, above, params, now)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalBuy, signals[0].Type)
	assert.InDelta(t, 0.26, signals[0].Value, 1e-12)
	assert.NotEmpty(t, signals[0].ID)
	assert.Equal(t, now, signals[0].GeneratedAt)
}

func TestScanSellSignal(t *testing.T) {
	b := domain.PricedBond{
		Symbol: "754GS2036", Series: "GS", Volume: 500,
		BidYTM: domain.Float64Ptr(7.00),
	}
	history := avgs("754GS2036", domain.Float64Ptr(7.40), nil, nil)

	signals := newService().Scan([]domain.PricedBond{b}, history, defaultParams(), time.Now())
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalSell, signals[0].Type)
	assert.InDelta(t, 0.40, signals[0].Priority, 1e-12)
}

func TestScanVolumeSignal(t *testing.T) {
	b := domain.PricedBond{Symbol: "754GS2036", Series: "GS", Volume: 900}
	history := avgs("754GS2036", nil, nil, domain.Float64Ptr(300))

	signals := newService().Scan([]domain.PricedBond{b}, history, defaultParams(), time.Now())
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalVolume, signals[0].Type)
	assert.InDelta(t, 3.0, signals[0].Value, 1e-12)

	// Exactly at the multiplier does not fire.
	b.Volume = 600
	assert.Empty(t, newService().Scan([]domain.PricedBond{b}, history, defaultParams(), time.Now()))
}

func TestScanLiquidSignalNeedsTwoSidedTightMarket(t *testing.T) {
	tests := []struct {
		name string
		bid  float64
		ask  float64
		want bool
	}{
		{"tight two-sided", 99.95, 100.00, true},
		{"spread at ceiling", 99.95, 100.05, false},
		{"wide", 99.00, 100.00, false},
		{"one-sided", 0, 100.00, false},
		{"crossed", 100.05, 100.00, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := domain.PricedBond{
				Symbol: "754GS2036", Series: "GS", Volume: 500,
				Bid: tt.bid, Ask: tt.ask, Spread: tt.ask - tt.bid,
			}
			signals := newService().Scan([]domain.PricedBond{b}, nil, defaultParams(), time.Now())
			if tt.want {
				require.Len(t, signals, 1)
				assert.Equal(t, domain.SignalLiquid, signals[0].Type)
			} else {
				assert.Empty(t, signals)
			}
		})
	}
}

func TestScanMinVolumeGate(t *testing.T) {
	b := domain.PricedBond{
		Symbol: "754GS2036", Series: "GS", Volume: 99,
		Bid: 99.95, Ask: 100.00, Spread: 0.05,
		AskYTM: domain.Float64Ptr(9.0),
	}
	history := avgs("754GS2036", nil, domain.Float64Ptr(7.0), nil)

	assert.Empty(t, newService().Scan([]domain.PricedBond{b}, history, defaultParams(), time.Now()))
}

func TestScanMissingAveragesSuppressOnlyDependentSignals(t *testing.T) {
	b := domain.PricedBond{
		Symbol: "754GS2036", Series: "GS", Volume: 500,
		Bid: 99.97, Ask: 100.00, Spread: 0.03,
		BidYTM: domain.Float64Ptr(7.6), AskYTM: domain.Float64Ptr(7.5),
	}

	// No history at all: yield and volume signals suppressed, liquidity fires.
	signals := newService().Scan([]domain.PricedBond{b}, nil, defaultParams(), time.Now())
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalLiquid, signals[0].Type)
}

func TestScanPoolsSortsAndTruncates(t *testing.T) {
	params := defaultParams()
	params.TopN = 2

	bonds := []domain.PricedBond{
		{Symbol: "A", Series: "GS", Volume: 500, AskYTM: domain.Float64Ptr(8.0)},
		{Symbol: "B", Series: "GS", Volume: 500, AskYTM: domain.Float64Ptr(8.5)},
		{Symbol: "C", Series: "GS", Volume: 500, AskYTM: domain.Float64Ptr(7.9)},
	}
	history := map[string]domain.HistoryAverages{
		"A": {AskAvg: domain.Float64Ptr(7.0)}, // +1.00
		"B": {AskAvg: domain.Float64Ptr(7.0)}, // +1.50
		"C": {AskAvg: domain.Float64Ptr(7.0)}, // +0.90
	}

	signals := newService().Scan(bonds, history, params, time.Now())
	require.Len(t, signals, 2)
	assert.Equal(t, "B", signals[0].Symbol)
	assert.Equal(t, "A", signals[1].Symbol)
}

func TestScanMultipleSignalTypesForOneBond(t *testing.T) {
	b := domain.PricedBond{
		Symbol: "754GS2036", Series: "GS", Volume: 900,
		Bid: 99.97, Ask: 100.00, Spread: 0.03,
		BidYTM: domain.Float64Ptr(6.9), AskYTM: domain.Float64Ptr(7.9),
	}
	history := avgs("754GS2036",
		domain.Float64Ptr(7.4), // bid 0.50 below: SELL
		domain.Float64Ptr(7.5), // ask 0.40 above: BUY
		domain.Float64Ptr(300), // 3x volume: VOLUME
	)

	signals := newService().Scan([]domain.PricedBond{b}, history, defaultParams(), time.Now())
	types := bySignalType(signals)
	require.Len(t, signals, 4)
	assert.Contains(t, types, domain.SignalBuy)
	assert.Contains(t, types, domain.SignalSell)
	assert.Contains(t, types, domain.SignalVolume)
	assert.Contains(t, types, domain.SignalLiquid)
}
