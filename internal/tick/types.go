package tick

import "encoding/json"

// Raw is an undecoded upstream feed payload.
type Raw map[string]any

// Kind classifies a normalized tick for downstream routing.
type Kind int

const (
	// KindQuote is a plain equity/index quote.
	KindQuote Kind = iota
	// KindOptionQuote is a quote carrying full option contract identity.
	KindOptionQuote
	// KindDepth is an order-book depth update without contract identity.
	KindDepth
)

func (k Kind) String() string {
	switch k {
	case KindOptionQuote:
		return "option_quote"
	case KindDepth:
		return "depth"
	default:
		return "quote"
	}
}

// Level is one price level of an order-book ladder.
type Level struct {
	Price float64 `json:"price"`
	Qty   int64   `json:"qty"`
}

// Tick is the normalized form of one upstream payload.
type Tick struct {
	Kind  Kind
	Alias string // stable routing key; empty only for depth ticks

	Symbol       string
	Token        string
	ExchangeCode string

	LTP       float64
	Close     float64
	Bid       float64
	Ask       float64
	ChangePct float64
	Timestamp string

	// Option contract fields (zero when Kind != KindOptionQuote, except
	// ExpiryISO which may be stamped onto depth ticks by the router).
	ExpiryISO string
	Strike    int
	Right     string

	Volume       int64
	OpenInterest int64

	Bids []Level
	Asks []Level
}

// wireTick is the downstream frame layout.
type wireTick struct {
	Type         string  `json:"type"`
	Symbol       string  `json:"symbol"`
	Token        string  `json:"token,omitempty"`
	ExchangeCode string  `json:"exchange_code,omitempty"`
	LTP          float64 `json:"ltp"`
	Close        float64 `json:"close,omitempty"`
	Bid          float64 `json:"bid,omitempty"`
	Ask          float64 `json:"ask,omitempty"`
	ChangePct    float64 `json:"change_pct,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	ExpiryDate   string  `json:"expiry_date,omitempty"`
	StrikePrice  int     `json:"strike_price,omitempty"`
	Right        string  `json:"right,omitempty"`
	Volume       int64   `json:"volume,omitempty"`
	OpenInterest int64   `json:"open_interest,omitempty"`
	Bids         []Level `json:"bids,omitempty"`
	Asks         []Level `json:"asks,omitempty"`
}

// MarshalWire encodes the tick as the downstream JSON frame. The symbol field
// carries the alias so clients key updates the same way they subscribed.
func (t Tick) MarshalWire() ([]byte, error) {
	return json.Marshal(wireTick{
		Type:         "tick",
		Symbol:       t.Alias,
		Token:        t.Token,
		ExchangeCode: t.ExchangeCode,
		LTP:          t.LTP,
		Close:        t.Close,
		Bid:          t.Bid,
		Ask:          t.Ask,
		ChangePct:    t.ChangePct,
		Timestamp:    t.Timestamp,
		ExpiryDate:   t.ExpiryISO,
		StrikePrice:  t.Strike,
		Right:        t.Right,
		Volume:       t.Volume,
		OpenInterest: t.OpenInterest,
		Bids:         t.Bids,
		Asks:         t.Asks,
	})
}
