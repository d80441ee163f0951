package hub

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/marketdesk/tickstream/internal/subs"
	"github.com/marketdesk/tickstream/internal/tick"
)

// Client is a downstream connection the hub can push frames to.
type Client interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// DefaultDebounce is the per-(client, alias) minimum delivery interval.
const DefaultDebounce = 250 * time.Millisecond

// clientState is the hub's per-client bookkeeping.
type clientState struct {
	option       bool
	pinnedExpiry string               // bare ISO date; empty means no filter
	lastSent     map[string]time.Time // alias → last delivery
}

// Hub routes ticks to registered clients.
type Hub struct {
	logger   *slog.Logger
	debounce time.Duration
	now      func() time.Time

	mu          sync.Mutex
	clients     map[Client]*clientState
	handlers    map[int]func(tick.Tick)
	nextHandler int
}

// NewHub creates a hub with the given debounce window; zero or negative
// selects DefaultDebounce.
func NewHub(debounce time.Duration, logger *slog.Logger) *Hub {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		debounce: debounce,
		now:      time.Now,
		clients:  make(map[Client]*clientState),
		handlers: make(map[int]func(tick.Tick)),
	}
}

// Register adds a client to the plain set, or the option set when option is
// true. Re-registering moves the client between sets and resets its state.
func (h *Hub) Register(c Client, option bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = &clientState{
		option:   option,
		lastSent: make(map[string]time.Time),
	}
	h.logger.Debug("client registered", "client_id", c.ID(), "option", option)
}

// Unregister removes a client. Unknown clients are a no-op.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.logger.Debug("client unregistered", "client_id", c.ID())
	}
}

// SetPinnedExpiry pins a client to one option expiry. Ticks for other
// expiries are withheld from that client. An empty date clears the pin.
func (h *Hub) SetPinnedExpiry(c Client, date string) {
	pinned := ""
	if date != "" {
		if iso, ok := subs.NormalizeExpiry(date); ok {
			pinned = iso
		} else {
			pinned = strings.TrimSpace(date)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.clients[c]; ok {
		st.pinnedExpiry = pinned
	}
}

// AddTickHandler registers a function invoked for every broadcast tick before
// client routing. Returns a handle for RemoveTickHandler.
func (h *Hub) AddTickHandler(fn func(tick.Tick)) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextHandler
	h.nextHandler++
	h.handlers[id] = fn
	return id
}

// RemoveTickHandler removes a handler registered with AddTickHandler.
func (h *Hub) RemoveTickHandler(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
}

// Counts returns the current plain and option client counts.
func (h *Hub) Counts() (plain, option int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, st := range h.clients {
		if st.option {
			option++
		} else {
			plain++
		}
	}
	return plain, option
}

// Broadcast delivers one tick to every eligible client. A client whose send
// fails is closed and removed; one slow or dead client never blocks the rest.
func (h *Hub) Broadcast(t tick.Tick) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, fn := range h.handlers {
		fn(t)
	}

	frame, err := t.MarshalWire()
	if err != nil {
		h.logger.Warn("tick marshal failed", "alias", t.Alias, "error", err)
		return
	}
	// Depth ticks stamped with a client's pinned expiry need their own frame.
	stamped := make(map[string][]byte)

	now := h.now()
	tickExpiry := expiryOf(t)
	var dead []Client

	for c, st := range h.clients {
		if st.option != wantsOption(t.Kind) {
			continue
		}
		if st.option && st.pinnedExpiry != "" && tickExpiry != "" && tickExpiry != st.pinnedExpiry {
			continue
		}

		key := t.Alias
		if key == "" {
			key = "depth:" + st.pinnedExpiry
		}
		if last, ok := st.lastSent[key]; ok && now.Sub(last) < h.debounce {
			continue
		}

		out := frame
		if t.Kind == tick.KindDepth && t.ExpiryISO == "" && st.pinnedExpiry != "" {
			out = stamped[st.pinnedExpiry]
			if out == nil {
				tc := t
				tc.ExpiryISO = st.pinnedExpiry
				out, err = tc.MarshalWire()
				if err != nil {
					continue
				}
				stamped[st.pinnedExpiry] = out
			}
		}

		if err := c.Send(out); err != nil {
			dead = append(dead, c)
			continue
		}
		st.lastSent[key] = now
	}

	for _, c := range dead {
		delete(h.clients, c)
		_ = c.Close()
		h.logger.Debug("client dropped on send failure", "client_id", c.ID())
	}
}

// wantsOption maps a tick kind to the client set it routes to.
func wantsOption(k tick.Kind) bool {
	return k == tick.KindOptionQuote || k == tick.KindDepth
}

// expiryOf extracts the tick's expiry for pinned filtering, falling back to
// the alias's contract form when the field is absent.
func expiryOf(t tick.Tick) string {
	if t.ExpiryISO != "" {
		return t.ExpiryISO
	}
	parts := strings.Split(t.Alias, "|")
	if len(parts) == 4 {
		return parts[1]
	}
	return ""
}
