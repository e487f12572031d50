package watchlist

import "github.com/compositedge/bondmonitor/internal/domain"

// EvaluateAlert derives the alert status from the side of the book the
// alert watches. A SELL alert watches the bid (can I sell at my target), a
// BUY alert watches the ask. A zero target or an empty side of the book
// yields NONE: no judgement, not FAR.
func EvaluateAlert(cfg domain.AlertConfig, bid, ask float64) domain.AlertStatus {
	watched := bid
	if cfg.Side == domain.AlertBuy {
		watched = ask
	}
	if cfg.Target <= 0 || watched <= 0 {
		return domain.AlertNone
	}

	// Distance still to travel toward the target. Negative or zero means
	// the watched price is at or through the target.
	distance := cfg.Target - watched
	if cfg.Side == domain.AlertBuy {
		distance = watched - cfg.Target
	}

	switch {
	case distance <= 0:
		return domain.AlertHit
	case distance <= cfg.Tolerance:
		return domain.AlertNear
	default:
		return domain.AlertFar
	}
}
