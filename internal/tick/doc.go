// Package tick normalizes raw upstream feed payloads into a single typed
// tick model.
//
// The upstream emits several payload shapes depending on subscription mode
// (token feed, exchange quotes, market depth) with inconsistent field names.
// Normalize flattens all of them: each candidate output field is decoded from
// an ordered list of source keys, option contract identity is rebuilt from the
// payload itself when present, and order-book depth ladders are extracted from
// the upstream's positional BestBuyRate-N/BestSellRate-N fields.
package tick
