package feed

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrConnectFailed = errors.New("all connect attempts failed")
)

// Actions accepted by the upstream command frame.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Command is one upstream subscription command frame.
type Command struct {
	Action       string   `json:"action"`
	StockTokens  []string `json:"stock_tokens,omitempty"`
	ExchangeCode string   `json:"exchange_code,omitempty"`
	StockCode    string   `json:"stock_code,omitempty"`
	ProductType  string   `json:"product_type,omitempty"`
	ExpiryDate   string   `json:"expiry_date,omitempty"`
	StrikePrice  string   `json:"strike_price,omitempty"`
	Right        string   `json:"right,omitempty"`

	GetExchangeQuotes bool `json:"get_exchange_quotes,omitempty"`
	GetMarketDepth    bool `json:"get_market_depth,omitempty"`
}

// Message wraps raw payload bytes with the local receive timestamp.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures the raw WebSocket client.
type ClientConfig struct {
	URL          string        // upstream feed URL
	APIKey       string        // broker API key, sent as a header
	SessionToken string        // broker session token, sent as a header
	PingTimeout  time.Duration // max time without ping before the connection is stale
	WriteTimeout time.Duration // write deadline for sends
	BufferSize   int           // message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// ConnectorConfig configures the feed connector.
type ConnectorConfig struct {
	Client           ClientConfig
	ConnectAttempts  int           // attempts before Connect gives up
	ConnectBaseDelay time.Duration // linear backoff step between attempts
}

// DefaultConnectorConfig returns sensible defaults.
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		Client:           DefaultClientConfig(),
		ConnectAttempts:  5,
		ConnectBaseDelay: time.Second,
	}
}
