package snapshots

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compositedge/bondmonitor/internal/domain"
)

func setupCache(t *testing.T) *CacheRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE snapshot_cache (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			payload    BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	return NewCacheRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
}

func testSnapshot(volume float64) domain.Snapshot {
	return domain.Snapshot{
		Bonds: []domain.PricedBond{{
			Symbol: "754GS2036", Volume: volume,
			YTM: domain.Float64Ptr(7.6),
		}},
		SettlementDate: time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC),
		FetchedAt:      time.Date(2026, time.May, 19, 10, 30, 0, 0, time.UTC),
		FeedStatus:     domain.FeedOK,
	}
}

func TestManagerColdStart(t *testing.T) {
	m := NewManager(nil, zerolog.New(nil).Level(zerolog.Disabled))
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManagerPublishAndCurrent(t *testing.T) {
	m := NewManager(nil, zerolog.New(nil).Level(zerolog.Disabled))
	m.Publish(testSnapshot(500))

	got, ok := m.Current()
	require.True(t, ok)
	require.Len(t, got.Bonds, 1)
	assert.Equal(t, "754GS2036", got.Bonds[0].Symbol)
}

func TestManagerSubscribeReceivesNewestSnapshot(t *testing.T) {
	m := NewManager(nil, zerolog.New(nil).Level(zerolog.Disabled))

	ch, cancel := m.Subscribe()
	defer cancel()

	// Two publishes with nobody draining: the buffered channel keeps the
	// first, the second is dropped for this subscriber, never blocks.
	m.Publish(testSnapshot(100))
	m.Publish(testSnapshot(200))

	select {
	case snap := <-ch:
		assert.Equal(t, 100.0, snap.Bonds[0].Volume)
	default:
		t.Fatal("expected a buffered snapshot")
	}

	cancel()
	m.Publish(testSnapshot(300)) // no panic on cancelled subscriber
}

func TestCacheRoundTripAndWarm(t *testing.T) {
	cache := setupCache(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)

	m := NewManager(cache, log)
	m.Warm() // empty cache: still cold
	_, ok := m.Current()
	assert.False(t, ok)

	m.Publish(testSnapshot(500))

	// A fresh manager over the same cache warms to the published state.
	restored := NewManager(cache, log)
	restored.Warm()
	got, ok := restored.Current()
	require.True(t, ok)
	require.Len(t, got.Bonds, 1)
	assert.Equal(t, 500.0, got.Bonds[0].Volume)
	require.NotNil(t, got.Bonds[0].YTM)
	assert.Equal(t, 7.6, *got.Bonds[0].YTM)
	assert.Equal(t, domain.FeedOK, got.FeedStatus)
}
