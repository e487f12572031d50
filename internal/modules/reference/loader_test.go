package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeTempCSV(t, "SYMBOL, Coupon Rate ,Redemption_Date\n754GS2036,7.54,15-04-2036\n717GS2028,7.17,08-01-2028\n")

	rows, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "754GS2036", rows[0].Symbol)
	assert.Equal(t, "7.54", rows[0].CouponRate)
	assert.Equal(t, "15-04-2036", rows[0].RedemptionDate)
}

func TestLoadCSVHeaderAliases(t *testing.T) {
	path := writeTempCSV(t, "Security,COUPON,Maturity Date\nX1,5.0,01-01-2030\n")

	rows, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "X1", rows[0].Symbol)
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := writeTempCSV(t, "symbol,coupon rate\n754GS2036,7.54\n")

	_, err := LoadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoadCSVShortRowsSkipped(t *testing.T) {
	path := writeTempCSV(t, "symbol,coupon rate,redemption date\n754GS2036,7.54,15-04-2036\nshortrow\n")

	rows, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
