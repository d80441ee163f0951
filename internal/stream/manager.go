package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketdesk/tickstream/internal/config"
	"github.com/marketdesk/tickstream/internal/hub"
	"github.com/marketdesk/tickstream/internal/quotecache"
	"github.com/marketdesk/tickstream/internal/subs"
	"github.com/marketdesk/tickstream/internal/tick"
)

// Feed is the upstream surface the manager drives.
type Feed interface {
	subs.Upstream

	OnTick(fn func(tick.Raw))
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsConnected() bool
}

// Manager owns the tick pipeline and exposes the operations the server layer
// calls on behalf of downstream clients.
type Manager struct {
	cfg    config.StreamConfig
	logger *slog.Logger

	feed     Feed
	registry *subs.Registry
	hub      *hub.Hub
	writer   *quotecache.Writer
	store    quotecache.Store

	ticks   chan tick.Tick
	dropped atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires a manager. The store is used for reads; writes go through
// the writer.
func NewManager(cfg config.StreamConfig, f Feed, store quotecache.Store, writer *quotecache.Writer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.TickBuffer
	if buffer <= 0 {
		buffer = config.DefaultTickBuffer
	}
	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		feed:     f,
		registry: subs.NewRegistry(f, logger),
		hub:      hub.NewHub(cfg.DebounceInterval, logger),
		writer:   writer,
		store:    store,
		ticks:    make(chan tick.Tick, buffer),
	}
	f.OnTick(m.handleRaw)
	return m
}

// Start launches the feed, the cache writer, and the tick consumer.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.feed.Start(m.ctx); err != nil {
		return err
	}
	if m.writer != nil {
		if err := m.writer.Start(m.ctx); err != nil {
			return err
		}
	}

	m.wg.Add(1)
	go m.consumeLoop()

	m.logger.Info("stream manager started", "tick_buffer", cap(m.ticks))
	return nil
}

// Stop shuts the pipeline down feed-first so no tick arrives after the
// consumer exits.
func (m *Manager) Stop(ctx context.Context) error {
	if err := m.feed.Stop(ctx); err != nil {
		m.logger.Warn("feed stop failed", "error", err)
	}

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("stream manager stop timed out")
	}

	if m.writer != nil {
		if err := m.writer.Stop(ctx); err != nil {
			return err
		}
	}
	m.logger.Info("stream manager stopped", "dropped_ticks", m.dropped.Load())
	return nil
}

// handleRaw is the feed callback. It must never block: normalization is pure,
// and the channel hand-off drops on a full buffer.
func (m *Manager) handleRaw(raw tick.Raw) {
	t, err := tick.Normalize(raw, m.registry)
	if err != nil {
		m.logger.Debug("tick dropped", "error", err)
		return
	}
	select {
	case m.ticks <- t:
	default:
		n := m.dropped.Add(1)
		if n%1000 == 1 {
			m.logger.Warn("tick buffer full, dropping", "dropped", n)
		}
	}
}

// consumeLoop is the single pipeline consumer.
func (m *Manager) consumeLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case t := <-m.ticks:
			if m.writer != nil {
				if q, ok := quotecache.FromTick(t, time.Now()); ok {
					m.writer.Put(q)
				}
			}
			m.hub.Broadcast(t)
		}
	}
}

// Subscribe records and issues one upstream subscription.
func (m *Manager) Subscribe(d subs.Descriptor) (subs.Record, error) {
	return m.registry.Subscribe(m.withDefaults(d))
}

// SubscribeMany subscribes a batch with per-item outcomes.
func (m *Manager) SubscribeMany(items []subs.Descriptor) []subs.Result {
	withDefaults := make([]subs.Descriptor, len(items))
	for i, d := range items {
		withDefaults[i] = m.withDefaults(d)
	}
	return m.registry.SubscribeBatch(withDefaults)
}

// withDefaults fills the configured exchange and product onto descriptors
// that leave them blank.
func (m *Manager) withDefaults(d subs.Descriptor) subs.Descriptor {
	if d.ProductType == "" {
		d.ProductType = m.cfg.DefaultProduct
	}
	if d.ExchangeCode == "" {
		if d.ProductType == subs.ProductOptions {
			d.ExchangeCode = m.cfg.OptionExchange
		} else {
			d.ExchangeCode = m.cfg.DefaultExchange
		}
	}
	return d
}

// Unsubscribe removes one subscription by key or alias.
func (m *Manager) Unsubscribe(key string) error {
	return m.registry.Unsubscribe(key)
}

// UnsubscribeMany removes a batch of subscriptions.
func (m *Manager) UnsubscribeMany(keys []string) {
	m.registry.UnsubscribeMany(keys)
}

// UnsubscribeAllOptions sweeps every option subscription.
func (m *Manager) UnsubscribeAllOptions() int {
	return m.registry.UnsubscribeAllOptions()
}

// UnsubscribeOptionsExcept sweeps option subscriptions for other expiries.
func (m *Manager) UnsubscribeOptionsExcept(keepDate string) int {
	return m.registry.UnsubscribeExceptExpiry(keepDate)
}

// RegisterClient attaches a downstream client to the fan-out hub.
func (m *Manager) RegisterClient(c hub.Client, option bool) {
	m.hub.Register(c, option)
}

// UnregisterClient detaches a downstream client.
func (m *Manager) UnregisterClient(c hub.Client) {
	m.hub.Unregister(c)
}

// SetPinnedExpiry pins a client to one option expiry.
func (m *Manager) SetPinnedExpiry(c hub.Client, date string) {
	m.hub.SetPinnedExpiry(c, date)
}

// LastQuote returns the cached last known quote for alias.
func (m *Manager) LastQuote(ctx context.Context, alias string) (quotecache.Quote, error) {
	return m.store.Get(ctx, alias)
}

// IsFeedConnected reports upstream connection state.
func (m *Manager) IsFeedConnected() bool {
	return m.feed.IsConnected()
}

// ClientCounts returns current plain and option client counts.
func (m *Manager) ClientCounts() (plain, option int) {
	return m.hub.Counts()
}

// SubscriptionCount returns the number of active upstream subscriptions.
func (m *Manager) SubscriptionCount() int {
	return m.registry.Len()
}

// DroppedTicks returns the count of ticks dropped on a full buffer.
func (m *Manager) DroppedTicks() int64 {
	return m.dropped.Load()
}
