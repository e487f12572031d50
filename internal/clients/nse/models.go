package nse

// liveBondsResponse is the envelope of the liveBonds endpoint. Rows are
// decoded loosely because the feed is inconsistent about numeric types
// (floats, ints and numeric strings all occur).
type liveBondsResponse struct {
	Data []map[string]interface{} `json:"data"`
}

// Feed row keys observed on the liveBonds endpoint.
const (
	fieldSymbol  = "symbol"
	fieldSeries  = "series"
	fieldBid     = "buyPrice1"
	fieldBidQty  = "buyQuantity1"
	fieldAsk     = "sellPrice1"
	fieldAskQty  = "sellQuantity1"
	fieldLast    = "lastPrice"
	fieldAverage = "averagePrice"
	fieldVolume  = "totalTradedVolume"
)
