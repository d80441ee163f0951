package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/marketdesk/tickstream/internal/tick"
)

// Connector drives the upstream feed through the broker command protocol.
// It connects lazily: the first subscription call dials the socket, and a
// dropped connection is redialed on the next call instead of in a background
// loop, so the process never burns retries while nothing is subscribed.
type Connector struct {
	cfg    ConnectorConfig
	logger *slog.Logger

	// newClient is swapped out by tests.
	newClient func() Client

	ctx context.Context

	mu        sync.Mutex
	client    Client
	connected bool
	closed    bool
	onTick    func(tick.Raw)
}

// NewConnector creates a feed connector. Start must be called before any
// subscription call.
func NewConnector(cfg ConnectorConfig, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = DefaultConnectorConfig().ConnectAttempts
	}
	if cfg.ConnectBaseDelay <= 0 {
		cfg.ConnectBaseDelay = DefaultConnectorConfig().ConnectBaseDelay
	}
	c := &Connector{
		cfg:    cfg,
		logger: logger,
		ctx:    context.Background(),
	}
	c.newClient = func() Client { return NewClient(cfg.Client, logger) }
	return c
}

// OnTick registers the payload callback. Must be set before Start so no
// payload arrives without a consumer.
func (c *Connector) OnTick(fn func(tick.Raw)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// Start stores the lifecycle context. The socket itself is dialed lazily on
// the first subscription call.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAlreadyClosed
	}
	c.ctx = ctx
	return nil
}

// Stop closes the upstream connection.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// IsConnected reports whether the upstream socket is currently up.
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Connect dials the upstream with bounded linear backoff. Calling while
// connected is a no-op.
func (c *Connector) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

// connectLocked dials under the connector lock.
func (c *Connector) connectLocked() error {
	if c.closed {
		return ErrAlreadyClosed
	}
	if c.connected && c.client != nil && c.client.IsConnected() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		cl := c.newClient()
		if err := cl.Connect(c.ctx); err != nil {
			lastErr = err
			c.logger.Warn("feed connect attempt failed",
				"attempt", attempt,
				"max_attempts", c.cfg.ConnectAttempts,
				"error", err,
			)
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(time.Duration(attempt) * c.cfg.ConnectBaseDelay):
			}
			continue
		}

		c.client = cl
		c.connected = true
		go c.consume(cl)
		c.logger.Info("feed connected", "url", c.cfg.Client.URL, "attempt", attempt)
		return nil
	}

	c.connected = false
	return fmt.Errorf("%w after %d attempts: %v", ErrConnectFailed, c.cfg.ConnectAttempts, lastErr)
}

// consume drains one client's messages until its error channel fires, then
// marks the connector disconnected so the next subscription call redials.
func (c *Connector) consume(cl Client) {
	for {
		select {
		case msg, ok := <-cl.Messages():
			if !ok {
				c.markDisconnected(cl)
				return
			}
			c.dispatch(msg.Data)
		case err := <-cl.Errors():
			c.logger.Warn("feed connection lost", "error", err)
			c.markDisconnected(cl)
			return
		case <-c.ctx.Done():
			return
		}
	}
}

// dispatch decodes one payload and hands it to the tick callback. Payloads
// that are not JSON objects (acks, heartbeats) are dropped.
func (c *Connector) dispatch(data []byte) {
	c.mu.Lock()
	fn := c.onTick
	c.mu.Unlock()
	if fn == nil {
		return
	}

	var raw tick.Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Debug("non-object feed payload dropped", "error", err)
		return
	}
	fn(raw)
}

// markDisconnected clears connection state if cl is still the active client.
func (c *Connector) markDisconnected(cl Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == cl {
		c.connected = false
		c.client = nil
	}
	_ = cl.Close()
}

// send lazily connects, then writes one command frame.
func (c *Connector) send(cmd Command) error {
	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	cl := c.client
	c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if err := cl.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Action, err)
	}
	return nil
}

// SubscribeTokens subscribes a batch of prefixed broker tokens.
func (c *Connector) SubscribeTokens(tokens []string) error {
	return c.send(Command{Action: ActionSubscribe, StockTokens: tokens})
}

// SubscribeQuote subscribes exchange quotes for one instrument.
func (c *Connector) SubscribeQuote(exchangeCode, stockCode, productType string) error {
	return c.send(Command{
		Action:            ActionSubscribe,
		ExchangeCode:      exchangeCode,
		StockCode:         stockCode,
		ProductType:       productType,
		GetExchangeQuotes: true,
	})
}

// SubscribeOption subscribes one option contract, either for exchange quotes
// or for market depth.
func (c *Connector) SubscribeOption(exchangeCode, stockCode, expiryDate, strikePrice, right, productType string, marketDepth bool) error {
	return c.send(Command{
		Action:            ActionSubscribe,
		ExchangeCode:      exchangeCode,
		StockCode:         stockCode,
		ProductType:       productType,
		ExpiryDate:        expiryDate,
		StrikePrice:       strikePrice,
		Right:             strings.ToLower(right),
		GetExchangeQuotes: !marketDepth,
		GetMarketDepth:    marketDepth,
	})
}

// UnsubscribeTokens unsubscribes a batch of prefixed broker tokens.
func (c *Connector) UnsubscribeTokens(tokens []string) error {
	return c.send(Command{Action: ActionUnsubscribe, StockTokens: tokens})
}

// UnsubscribeQuote unsubscribes exchange quotes for one instrument.
func (c *Connector) UnsubscribeQuote(exchangeCode, stockCode, productType string) error {
	return c.send(Command{
		Action:            ActionUnsubscribe,
		ExchangeCode:      exchangeCode,
		StockCode:         stockCode,
		ProductType:       productType,
		GetExchangeQuotes: true,
	})
}

// UnsubscribeOption unsubscribes one option contract.
func (c *Connector) UnsubscribeOption(exchangeCode, stockCode, expiryDate, strikePrice, right, productType string) error {
	return c.send(Command{
		Action:       ActionUnsubscribe,
		ExchangeCode: exchangeCode,
		StockCode:    stockCode,
		ProductType:  productType,
		ExpiryDate:   expiryDate,
		StrikePrice:  strikePrice,
		Right:        strings.ToLower(right),
	})
}
