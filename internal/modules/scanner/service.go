// Package scanner ranks live bonds against their trailing history and
// emits BUY / SELL / VOLUME / LIQUID signals.
package scanner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// liquidSpreadCeiling is the spread (per 100 face) below which a two-sided
// market counts as unusually tight for this segment.
const liquidSpreadCeiling = 0.10

// Service generates opportunity signals from one priced snapshot.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new scanner service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "scanner").Logger(),
	}
}

// Scan evaluates every bond against its history averages and returns the
// pooled signals sorted by priority descending, truncated to params.TopN.
//
// Bonds below params.MinVolume are skipped entirely. A missing history
// average suppresses only the signals that depend on it: a bond with no
// volume history can still fire yield signals, and vice versa.
func (s *Service) Scan(bonds []domain.PricedBond, averages map[string]domain.HistoryAverages, params domain.ScanParams, now time.Time) []domain.Signal {
	var signals []domain.Signal

	for _, b := range bonds {
		if b.Volume < params.MinVolume {
			continue
		}
		avg := averages[b.Symbol]

		if sig, ok := s.buySignal(b, avg, params); ok {
			signals = append(signals, sig)
		}
		if sig, ok := s.sellSignal(b, avg, params); ok {
			signals = append(signals, sig)
		}
		if sig, ok := s.volumeSignal(b, avg, params); ok {
			signals = append(signals, sig)
		}
		if sig, ok := s.liquidSignal(b); ok {
			signals = append(signals, sig)
		}
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Priority != signals[j].Priority {
			return signals[i].Priority > signals[j].Priority
		}
		return signals[i].Symbol < signals[j].Symbol
	})
	if params.TopN > 0 && len(signals) > params.TopN {
		signals = signals[:params.TopN]
	}

	for i := range signals {
		signals[i].ID = uuid.New().String()
		signals[i].GeneratedAt = now
	}

	s.log.Debug().Int("signals", len(signals)).Msg("Scan complete")
	return signals
}

// buySignal fires when the ask-side yield sits strictly more than the
// threshold above its trailing average: the bond is offered cheap.
func (s *Service) buySignal(b domain.PricedBond, avg domain.HistoryAverages, params domain.ScanParams) (domain.Signal, bool) {
	if b.AskYTM == nil || avg.AskAvg == nil {
		return domain.Signal{}, false
	}
	deviation := *b.AskYTM - *avg.AskAvg
	if deviation <= params.YieldThreshold {
		return domain.Signal{}, false
	}
	return domain.Signal{
		Symbol:   b.Symbol,
		Series:   b.Series,
		Type:     domain.SignalBuy,
		Priority: deviation,
		Value:    deviation,
		Message:  fmt.Sprintf("Ask yield %.2f%% is %.2f%% above its trailing average", *b.AskYTM, deviation),
	}, true
}

// sellSignal mirrors buySignal on the bid side: the market bids the bond
// rich relative to its history.
func (s *Service) sellSignal(b domain.PricedBond, avg domain.HistoryAverages, params domain.ScanParams) (domain.Signal, bool) {
	if b.BidYTM == nil || avg.BidAvg == nil {
		return domain.Signal{}, false
	}
	deviation := *avg.BidAvg - *b.BidYTM
	if deviation <= params.YieldThreshold {
		return domain.Signal{}, false
	}
	return domain.Signal{
		Symbol:   b.Symbol,
		Series:   b.Series,
		Type:     domain.SignalSell,
		Priority: deviation,
		Value:    deviation,
		Message:  fmt.Sprintf("Bid yield %.2f%% is %.2f%% below its trailing average", *b.BidYTM, deviation),
	}, true
}

func (s *Service) volumeSignal(b domain.PricedBond, avg domain.HistoryAverages, params domain.ScanParams) (domain.Signal, bool) {
	if avg.VolumeAvg == nil || *avg.VolumeAvg <= 0 {
		return domain.Signal{}, false
	}
	if b.Volume <= *avg.VolumeAvg*params.VolumeMultiplier {
		return domain.Signal{}, false
	}
	multiple := b.Volume / *avg.VolumeAvg
	return domain.Signal{
		Symbol:   b.Symbol,
		Series:   b.Series,
		Type:     domain.SignalVolume,
		Priority: multiple,
		Value:    multiple,
		Message:  fmt.Sprintf("Volume %.0f is %.1fx its trailing average", b.Volume, multiple),
	}, true
}

// liquidSignal needs no history: a live two-sided market with a spread
// inside the ceiling is tradeable right now. Tighter spreads rank higher.
func (s *Service) liquidSignal(b domain.PricedBond) (domain.Signal, bool) {
	if b.Bid <= 0 || b.Ask <= 0 {
		return domain.Signal{}, false
	}
	if b.Spread <= 0 || b.Spread >= liquidSpreadCeiling {
		return domain.Signal{}, false
	}
	return domain.Signal{
		Symbol:   b.Symbol,
		Series:   b.Series,
		Type:     domain.SignalLiquid,
		Priority: liquidSpreadCeiling - b.Spread,
		Value:    b.Spread,
		Message:  fmt.Sprintf("Tight two-sided market: spread %.2f", b.Spread),
	}, true
}
