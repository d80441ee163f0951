package quotecache

import (
	"context"
	"errors"
	"time"

	"github.com/marketdesk/tickstream/internal/tick"
)

// ErrNotFound means the alias has no cached quote.
var ErrNotFound = errors.New("quote not found")

// Quote is the cached last known state of one alias.
type Quote struct {
	Alias     string    `json:"symbol"`
	LTP       float64   `json:"ltp"`
	Close     float64   `json:"close,omitempty"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	ChangePct float64   `json:"change_pct,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists last known quotes keyed by alias.
type Store interface {
	// UpsertBatch writes or replaces a batch of quotes.
	UpsertBatch(ctx context.Context, quotes []Quote) error

	// Get returns the cached quote for alias, or ErrNotFound.
	Get(ctx context.Context, alias string) (Quote, error)

	// Close releases backend resources.
	Close()
}

// FromTick converts a normalized tick into a cacheable quote. Depth updates
// and ticks without an alias or a price are not cacheable.
func FromTick(t tick.Tick, at time.Time) (Quote, bool) {
	if t.Alias == "" || t.Kind == tick.KindDepth || t.LTP == 0 {
		return Quote{}, false
	}
	return Quote{
		Alias:     t.Alias,
		LTP:       t.LTP,
		Close:     t.Close,
		Bid:       t.Bid,
		Ask:       t.Ask,
		ChangePct: t.ChangePct,
		Timestamp: t.Timestamp,
		UpdatedAt: at,
	}, true
}
