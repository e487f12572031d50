package bondmath

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettlementDate(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  time.Time
	}{
		{
			name:  "monday settles tuesday",
			today: date(2026, time.August, 24),
			want:  date(2026, time.August, 25),
		},
		{
			name:  "wednesday settles thursday",
			today: date(2026, time.August, 26),
			want:  date(2026, time.August, 27),
		},
		{
			name:  "thursday settles friday",
			today: date(2026, time.August, 27),
			want:  date(2026, time.August, 28),
		},
		{
			name:  "friday skips weekend",
			today: date(2026, time.August, 28),
			want:  date(2026, time.August, 31),
		},
		{
			name:  "saturday lands monday",
			today: date(2026, time.August, 29),
			want:  date(2026, time.August, 31),
		},
		{
			name:  "sunday lands monday",
			today: date(2026, time.August, 30),
			want:  date(2026, time.August, 31),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SettlementDate(tt.today))
		})
	}
}

func TestSettlementDateProperties(t *testing.T) {
	// Two full weeks: result is always strictly after the input and never
	// falls on a weekend.
	start := date(2026, time.August, 17)
	for i := 0; i < 14; i++ {
		today := start.AddDate(0, 0, i)
		settle := SettlementDate(today)

		assert.True(t, settle.After(today), "settlement for %s not after trade date", today.Format("2006-01-02"))
		assert.NotEqual(t, time.Saturday, settle.Weekday())
		assert.NotEqual(t, time.Sunday, settle.Weekday())
	}
}
