// Package relvalue computes each bond's yield deviation from its peer
// group mean, in basis points.
package relvalue

import (
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// GroupBy selects the peer-group key.
type GroupBy string

const (
	GroupBySeries         GroupBy = "series"
	GroupByMaturityBucket GroupBy = "maturity"
)

// MaturityBucket assigns a bond to a tenor bucket by years to maturity.
func MaturityBucket(years float64) string {
	switch {
	case years < 3:
		return "0-3Y"
	case years < 5:
		return "3-5Y"
	case years < 7:
		return "5-7Y"
	case years < 10:
		return "7-10Y"
	default:
		return "10Y+"
	}
}

// Engine annotates priced bonds with relative value.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new relative-value engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("service", "relvalue").Logger(),
	}
}

// Apply sets RelativeValueBps = (bondYTM - groupMeanYTM) * 100 for every
// bond with a non-nil YTM. Nil-YTM bonds contribute nothing to the group
// mean and keep a nil relative value. A group of size one trivially gets
// zero. The input slice is modified in place and returned; it belongs to
// the snapshot under construction, which is not yet published.
func (e *Engine) Apply(bonds []domain.PricedBond, groupBy GroupBy) []domain.PricedBond {
	groups := make(map[string][]float64)
	for _, b := range bonds {
		if b.YTM == nil {
			continue
		}
		key := e.key(b, groupBy)
		groups[key] = append(groups[key], *b.YTM)
	}

	means := make(map[string]float64, len(groups))
	for key, ytms := range groups {
		means[key] = stat.Mean(ytms, nil)
	}

	for i := range bonds {
		if bonds[i].YTM == nil {
			bonds[i].RelativeValueBps = nil
			continue
		}
		mean := means[e.key(bonds[i], groupBy)]
		bonds[i].RelativeValueBps = domain.Float64Ptr((*bonds[i].YTM - mean) * 100.0)
	}

	return bonds
}

func (e *Engine) key(b domain.PricedBond, groupBy GroupBy) string {
	if groupBy == GroupByMaturityBucket {
		return MaturityBucket(b.YearsToMaturity)
	}
	return b.Series
}
