package reference

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Column aliases accepted after header normalization (lowercase, spaces
// and underscores removed). Reference exports are inconsistent about both
// case and whitespace.
var (
	symbolColumns     = []string{"symbol", "security"}
	couponColumns     = []string{"couponrate", "coupon", "rate"}
	redemptionColumns = []string{"redemptiondate", "maturitydate", "maturity", "redemption"}
)

// LoadCSV reads raw reference rows from a CSV file. A missing file or a
// missing required column is a hard error: without reference data no bond
// can be priced at all.
func LoadCSV(path string) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open reference file %s: %w (place the security master CSV there or set REFERENCE_CSV_PATH)", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot parse reference file %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("reference file %s is empty", path)
	}

	header := records[0]
	symbolIdx := findColumn(header, symbolColumns)
	couponIdx := findColumn(header, couponColumns)
	redemptionIdx := findColumn(header, redemptionColumns)

	if symbolIdx < 0 || couponIdx < 0 || redemptionIdx < 0 {
		return nil, fmt.Errorf(
			"reference file %s is missing required columns (need symbol, coupon rate, redemption date; got %v)",
			path, header)
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if symbolIdx >= len(record) || couponIdx >= len(record) || redemptionIdx >= len(record) {
			continue
		}
		rows = append(rows, RawRow{
			Symbol:         record[symbolIdx],
			CouponRate:     record[couponIdx],
			RedemptionDate: record[redemptionIdx],
		})
	}

	return rows, nil
}

// findColumn matches a header against known aliases after normalization.
func findColumn(header []string, aliases []string) int {
	for i, col := range header {
		normalized := strings.ToLower(col)
		normalized = strings.ReplaceAll(normalized, " ", "")
		normalized = strings.ReplaceAll(normalized, "_", "")
		for _, alias := range aliases {
			if normalized == alias {
				return i
			}
		}
	}
	return -1
}
