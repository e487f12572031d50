package watchlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compositedge/bondmonitor/internal/domain"
)

func TestEvaluateAlertSellSide(t *testing.T) {
	cfg := domain.AlertConfig{Side: domain.AlertSell, Target: 100.0, Tolerance: 0.02}

	tests := []struct {
		name string
		bid  float64
		want domain.AlertStatus
	}{
		{"bid at target", 100.00, domain.AlertHit},
		{"bid through target", 100.50, domain.AlertHit},
		{"within tolerance", 99.99, domain.AlertNear},
		{"at tolerance boundary", 99.98, domain.AlertNear},
		{"below tolerance", 99.50, domain.AlertFar},
		{"no bid", 0, domain.AlertNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Ask side is irrelevant to a SELL alert.
			assert.Equal(t, tt.want, EvaluateAlert(cfg, tt.bid, 105.0))
		})
	}
}

func TestEvaluateAlertBuySide(t *testing.T) {
	cfg := domain.AlertConfig{Side: domain.AlertBuy, Target: 99.50, Tolerance: 0.05}

	tests := []struct {
		name string
		ask  float64
		want domain.AlertStatus
	}{
		{"ask at target", 99.50, domain.AlertHit},
		{"ask through target", 99.20, domain.AlertHit},
		{"within tolerance", 99.54, domain.AlertNear},
		{"beyond tolerance", 100.10, domain.AlertFar},
		{"no ask", 0, domain.AlertNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateAlert(cfg, 95.0, tt.ask))
		})
	}
}

func TestEvaluateAlertZeroTargetIsNone(t *testing.T) {
	cfg := domain.AlertConfig{Side: domain.AlertSell, Target: 0, Tolerance: 0.02}
	assert.Equal(t, domain.AlertNone, EvaluateAlert(cfg, 100.0, 100.1))
}
