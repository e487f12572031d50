package history

import (
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compositedge/bondmonitor/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE yield_history (
			date    TEXT NOT NULL,
			symbol  TEXT NOT NULL,
			bid_ytm REAL,
			ask_ytm REAL,
			volume  REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (date, symbol)
		)
	`)
	require.NoError(t, err)
	return db
}

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(setupTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
}

func priced(symbol string, bidYTM, askYTM *float64, volume float64) domain.PricedBond {
	return domain.PricedBond{Symbol: symbol, BidYTM: bidYTM, AskYTM: askYTM, Volume: volume}
}

func TestRecordSnapshotFirstWriteWins(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.RecordSnapshot("2026-05-19", []domain.PricedBond{
		priced("754GS2036", domain.Float64Ptr(7.6), domain.Float64Ptr(7.5), 500),
	}))
	// Same date again with different numbers: ignored.
	require.NoError(t, repo.RecordSnapshot("2026-05-19", []domain.PricedBond{
		priced("754GS2036", domain.Float64Ptr(9.9), domain.Float64Ptr(9.8), 9000),
	}))

	points, err := repo.Points("754GS2036")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 7.6, *points[0].BidYTM)
	assert.Equal(t, 500.0, points[0].Volume)
}

func TestRecordSnapshotSkipsBondsWithoutBidYield(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.RecordSnapshot("2026-05-19", []domain.PricedBond{
		priced("754GS2036", nil, domain.Float64Ptr(7.5), 500),
	}))

	points, err := repo.Points("754GS2036")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestRecordSnapshotPrunesToSevenDates(t *testing.T) {
	repo := newRepo(t)

	for day := 1; day <= 10; day++ {
		date := fmt.Sprintf("2026-05-%02d", day)
		require.NoError(t, repo.RecordSnapshot(date, []domain.PricedBond{
			priced("754GS2036", domain.Float64Ptr(7.0+float64(day)/100), nil, 100),
		}))

		dates, err := repo.DistinctDates()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(dates), 7)
	}

	dates, err := repo.DistinctDates()
	require.NoError(t, err)
	require.Len(t, dates, 7)
	// Newest first, oldest surviving date is day 4.
	assert.Equal(t, "2026-05-10", dates[0])
	assert.Equal(t, "2026-05-04", dates[6])
}

func TestAverages(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.RecordSnapshot("2026-05-18", []domain.PricedBond{
		priced("754GS2036", domain.Float64Ptr(7.0), domain.Float64Ptr(6.8), 100),
	}))
	require.NoError(t, repo.RecordSnapshot("2026-05-19", []domain.PricedBond{
		priced("754GS2036", domain.Float64Ptr(7.4), nil, 300),
	}))

	avg, err := repo.Averages("754GS2036")
	require.NoError(t, err)

	require.NotNil(t, avg.BidAvg)
	assert.InDelta(t, 7.2, *avg.BidAvg, 1e-12)

	// One of two days had no ask yield: the ask mean covers the point it has.
	require.NotNil(t, avg.AskAvg)
	assert.InDelta(t, 6.8, *avg.AskAvg, 1e-12)

	require.NotNil(t, avg.VolumeAvg)
	assert.InDelta(t, 200.0, *avg.VolumeAvg, 1e-12)
}

func TestAveragesNoData(t *testing.T) {
	repo := newRepo(t)

	avg, err := repo.Averages("UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, avg.BidAvg)
	assert.Nil(t, avg.AskAvg)
	assert.Nil(t, avg.VolumeAvg)
}

func TestAveragesAll(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.RecordSnapshot("2026-05-19", []domain.PricedBond{
		priced("754GS2036", domain.Float64Ptr(7.6), domain.Float64Ptr(7.5), 500),
		priced("717GS2028", domain.Float64Ptr(7.1), nil, 50),
	}))

	all, err := repo.AveragesAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.InDelta(t, 7.6, *all["754GS2036"].BidAvg, 1e-12)
	assert.Nil(t, all["717GS2028"].AskAvg)
	assert.InDelta(t, 50.0, *all["717GS2028"].VolumeAvg, 1e-12)
}
