package bondmath

import "time"

// SettlementDate maps a trade date to its T+1 settlement date with weekend
// skip: Monday-Thursday settle the next day, Friday settles Monday (+3),
// Saturday settles Monday (+2). Sunday is not a trading day either and also
// lands on Monday (+1). The result is always strictly after the input and
// never a weekend.
//
// The resolver is called once per refresh cycle and the result is held
// fixed for every bond in that cycle.
func SettlementDate(today time.Time) time.Time {
	switch today.Weekday() {
	case time.Friday:
		return today.AddDate(0, 0, 3)
	case time.Saturday:
		return today.AddDate(0, 0, 2)
	default:
		return today.AddDate(0, 0, 1)
	}
}
