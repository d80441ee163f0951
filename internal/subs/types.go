package subs

import (
	"regexp"
	"strings"
)

// Product types accepted on descriptors.
const (
	ProductCash    = "cash"
	ProductOptions = "options"
)

// ExchangeToken marks records subscribed through the token form rather than an
// exchange/stock-code pair.
const ExchangeToken = "TOKEN"

// Descriptor is an inbound subscription intent from the REST/WebSocket layer.
type Descriptor struct {
	StockCode    string `json:"stock_code"`
	Token        string `json:"token"`
	ExchangeCode string `json:"exchange_code"`
	ProductType  string `json:"product_type"`
	ExpiryDate   string `json:"expiry_date"`
	StrikePrice  string `json:"strike_price"`
	Right        string `json:"right"`
	Alias        string `json:"alias"`

	// MarketDepth requests order-book depth instead of exchange quotes on the
	// upstream subscribe call.
	MarketDepth bool `json:"market_depth"`
}

// Record is the registry's view of one active upstream subscription.
type Record struct {
	Key          string // upstream subscription key, unique per subscription
	Alias        string // stable logical routing key
	ExchangeCode string // exchange code, or ExchangeToken for token-form subs
	ProductType  string

	// Option contract fields (zero for non-options).
	Underlying string
	WireCode   string // stock code as sent upstream (pre-fold), kept for unsubscribe
	ExpiryISO  string // canonical bare ISO date
	ExpiryWire string // upstream-accepted form, kept for unsubscribe
	Strike     int
	Right      string

	Depth bool // subscribed for market depth
}

// IsOption reports whether the record describes an option contract.
func (r Record) IsOption() bool {
	return r.ProductType == ProductOptions
}

// Result is the per-item outcome of a batch subscribe.
type Result struct {
	Key   string
	Alias string
	Err   error
}

var (
	tokenForm = regexp.MustCompile(`^\d+\.\d+!.+$`)
	bareToken = regexp.MustCompile(`^\d+$`)
)

// NormalizeTokenKey rewrites a bare numeric broker token into the prefixed
// token form the upstream expects ("2885" on NSE becomes "4.1!2885").
// Already-prefixed tokens pass through uppercased.
func NormalizeTokenKey(token, exchangeCode string) string {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" || tokenForm.MatchString(token) {
		return token
	}
	prefix := "1.1!"
	if strings.ToUpper(exchangeCode) == "NSE" || exchangeCode == "" {
		prefix = "4.1!"
	}
	return prefix + token
}

// IsTokenKey reports whether the code is already in the prefixed token form.
func IsTokenKey(code string) bool {
	return tokenForm.MatchString(code)
}

// isBareToken reports whether the code is a bare numeric broker token.
func isBareToken(code string) bool {
	return bareToken.MatchString(code)
}
