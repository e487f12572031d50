package reference

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

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE bond_reference (
			symbol          TEXT PRIMARY KEY,
			coupon_rate     REAL NOT NULL,
			redemption_date TEXT NOT NULL,
			updated_at      INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	return db
}

func TestRepositoryReplaceAllAndGetAll(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewRepository(setupTestDB(t), log)

	refs := []domain.BondReference{
		{Symbol: "754GS2036", CouponRate: 7.54, RedemptionDate: time.Date(2036, time.April, 15, 0, 0, 0, 0, time.UTC)},
		{Symbol: "717GS2028", CouponRate: 7.17, RedemptionDate: time.Date(2028, time.January, 8, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, repo.ReplaceAll(refs))

	got, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Sorted by symbol.
	assert.Equal(t, "717GS2028", got[0].Symbol)
	assert.Equal(t, "754GS2036", got[1].Symbol)
	assert.Equal(t, 7.54, got[1].CouponRate)
	assert.Equal(t, refs[0].RedemptionDate, got[1].RedemptionDate)

	// A second ReplaceAll swaps the set wholesale.
	require.NoError(t, repo.ReplaceAll(refs[:1]))
	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
