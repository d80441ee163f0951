package server

import "time"

// ist is the exchange timezone. The exchange publishes times without DST, so
// a fixed offset is sufficient.
var ist = time.FixedZone("IST", 5*3600+30*60)

// Session bounds, minutes from midnight IST.
const (
	sessionOpen  = 9*60 + 15  // 09:15
	sessionClose = 15*60 + 30 // 15:30
)

// IsMarketOpen reports whether t falls inside the regular cash session
// (09:15–15:30 IST, Monday through Friday).
func IsMarketOpen(t time.Time) bool {
	local := t.In(ist)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= sessionOpen && m <= sessionClose
}
