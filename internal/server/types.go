package server

import (
	"errors"

	"github.com/marketdesk/tickstream/internal/quotecache"
	"github.com/marketdesk/tickstream/internal/subs"
)

// errMissingChainFields rejects option chain requests without the full
// underlying/expiry/strikes triple.
var errMissingChainFields = errors.New("underlying, expiry_date and strikes are required")

// Actions accepted on /ws/ticks.
const (
	actionSubscribe       = "subscribe"
	actionSubscribeMany   = "subscribe_many"
	actionUnsubscribe     = "unsubscribe"
	actionUnsubscribeMany = "unsubscribe_many"
)

// Actions accepted on /ws/options.
const (
	actionSubscribeOptions   = "subscribe_options"
	actionSubscribeDepth     = "subscribe_market_depth"
	actionUnsubscribeOptions = "unsubscribe_options"
)

// cacheNote is attached to frames answered from the cache instead of the
// live feed.
const cacheNote = "market closed; using cache"

// request is one inbound client action frame. Fields are a union across all
// actions; each handler reads the ones its action defines.
type request struct {
	Action string `json:"action"`

	// Single-instrument fields.
	Symbol       string `json:"symbol"`
	Token        string `json:"token"`
	ExchangeCode string `json:"exchange_code"`
	ProductType  string `json:"product_type"`

	// Batch fields.
	Symbols []subs.Descriptor `json:"symbols"`
	Keys    []string          `json:"keys"`

	// Option chain fields.
	Underlying string    `json:"underlying"`
	ExpiryDate string    `json:"expiry_date"`
	Strikes    []float64 `json:"strikes"`
	Right      string    `json:"right"`
}

// ack is the reply to an action frame.
type ack struct {
	Type   string `json:"type"` // "ack"
	Action string `json:"action"`
	Status string `json:"status"` // "ok" or "error"
	Symbol string `json:"symbol,omitempty"`
	Count  int    `json:"count,omitempty"`
	Error  string `json:"error,omitempty"`
}

// hello is the first frame on /ws/options.
type hello struct {
	Type       string `json:"type"` // "hello"
	ClientID   string `json:"client_id"`
	MarketOpen bool   `json:"market_open"`
}

// cachedFrame is a tick-shaped frame served from the quote cache.
type cachedFrame struct {
	Type      string  `json:"type"` // "tick"
	Symbol    string  `json:"symbol"`
	LTP       float64 `json:"ltp"`
	Close     float64 `json:"close,omitempty"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	ChangePct float64 `json:"change_pct,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Note      string  `json:"note"`
}

// newCachedFrame shapes a cached quote like a live tick frame.
func newCachedFrame(q quotecache.Quote) cachedFrame {
	return cachedFrame{
		Type:      "tick",
		Symbol:    q.Alias,
		LTP:       q.LTP,
		Close:     q.Close,
		Bid:       q.Bid,
		Ask:       q.Ask,
		ChangePct: q.ChangePct,
		Timestamp: q.Timestamp,
		Note:      cacheNote,
	}
}
