package tick

import (
	"sort"
	"strconv"
)

// maxDepthLevels is the number of positional levels the upstream emits.
const maxDepthLevels = 5

// parseDepth extracts order-book ladders from the upstream's positional
// fields (BestBuyRate-1 .. BestBuyRate-5 and the Sell equivalents). Levels
// missing either rate or quantity are dropped rather than zero-filled. Bids
// come back best-first (descending), asks best-first (ascending).
func parseDepth(raw Raw) (bids, asks []Level) {
	for i := 1; i <= maxDepthLevels; i++ {
		n := strconv.Itoa(i)
		if lvl, ok := level(raw, "BestBuyRate-"+n, "BestBuyQty-"+n); ok {
			bids = append(bids, lvl)
		}
		if lvl, ok := level(raw, "BestSellRate-"+n, "BestSellQty-"+n); ok {
			asks = append(asks, lvl)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return bids, asks
}

func level(raw Raw, rateKey, qtyKey string) (Level, bool) {
	rate, ok := toFloat(raw[rateKey])
	if !ok {
		return Level{}, false
	}
	qty, ok := toFloat(raw[qtyKey])
	if !ok {
		return Level{}, false
	}
	return Level{Price: rate, Qty: int64(qty)}, true
}
