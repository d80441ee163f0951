package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketdesk/tickstream/internal/config"
	"github.com/marketdesk/tickstream/internal/hub"
	"github.com/marketdesk/tickstream/internal/quotecache"
	"github.com/marketdesk/tickstream/internal/subs"
)

// fakeStreamer satisfies Streamer with canned behavior.
type fakeStreamer struct {
	mu          sync.Mutex
	subscribed  []subs.Descriptor
	unsubOnly   []string
	sweeps      int
	exceptDates []string
	pinned      map[string]string
	quotes      map[string]quotecache.Quote
	clients     int
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{
		pinned: make(map[string]string),
		quotes: make(map[string]quotecache.Quote),
	}
}

func (f *fakeStreamer) Subscribe(d subs.Descriptor) (subs.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, d)
	alias := strings.ToUpper(d.StockCode)
	return subs.Record{Key: alias, Alias: alias}, nil
}

func (f *fakeStreamer) SubscribeMany(items []subs.Descriptor) []subs.Result {
	results := make([]subs.Result, len(items))
	for i, d := range items {
		rec, err := f.Subscribe(d)
		results[i] = subs.Result{Key: rec.Key, Alias: rec.Alias, Err: err}
	}
	return results
}

func (f *fakeStreamer) Unsubscribe(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubOnly = append(f.unsubOnly, key)
	return nil
}

func (f *fakeStreamer) UnsubscribeMany(keys []string) {
	for _, k := range keys {
		f.Unsubscribe(k)
	}
}

func (f *fakeStreamer) UnsubscribeAllOptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 2
}

func (f *fakeStreamer) UnsubscribeOptionsExcept(keepDate string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exceptDates = append(f.exceptDates, keepDate)
	return 0
}

func (f *fakeStreamer) RegisterClient(c hub.Client, option bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients++
}

func (f *fakeStreamer) UnregisterClient(c hub.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients--
}

func (f *fakeStreamer) SetPinnedExpiry(c hub.Client, date string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned[c.ID()] = date
}

func (f *fakeStreamer) LastQuote(ctx context.Context, alias string) (quotecache.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[alias]
	if !ok {
		return quotecache.Quote{}, quotecache.ErrNotFound
	}
	return q, nil
}

func (f *fakeStreamer) IsFeedConnected() bool    { return true }
func (f *fakeStreamer) ClientCounts() (int, int) { return 1, 0 }
func (f *fakeStreamer) SubscriptionCount() int   { return 3 }

func (f *fakeStreamer) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribed)
}

// dial opens a test websocket against path.
func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %s: %v", data, err)
	}
	return frame
}

func newTestServer(t *testing.T, streamer Streamer, open bool) *httptest.Server {
	t.Helper()
	s := NewServer(config.ServerConfig{WriteTimeout: time.Second}, streamer, nil)
	if open {
		// Wednesday 11:00 IST.
		s.now = func() time.Time { return time.Date(2025, 2, 12, 11, 0, 0, 0, ist) }
	} else {
		// Wednesday 20:00 IST.
		s.now = func() time.Time { return time.Date(2025, 2, 12, 20, 0, 0, 0, ist) }
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestTicksSubscribeAck(t *testing.T) {
	streamer := newFakeStreamer()
	ts := newTestServer(t, streamer, true)
	conn := dial(t, ts, "/ws/ticks")

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "symbol": "RELIANCE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["type"] != "ack" || frame["status"] != "ok" {
		t.Errorf("frame = %v, want ok ack", frame)
	}
	if streamer.subscribeCount() != 1 {
		t.Errorf("subscribes = %d, want 1", streamer.subscribeCount())
	}
}

func TestTicksSubscribeClosedMarketServesCache(t *testing.T) {
	streamer := newFakeStreamer()
	streamer.quotes["RELIANCE"] = quotecache.Quote{Alias: "RELIANCE", LTP: 2885.5}
	ts := newTestServer(t, streamer, false)
	conn := dial(t, ts, "/ws/ticks")

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "symbol": "RELIANCE"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, conn) // ack
	if frame["status"] != "ok" {
		t.Fatalf("ack = %v", frame)
	}
	frame = readFrame(t, conn) // cached tick
	if frame["type"] != "tick" || frame["symbol"] != "RELIANCE" {
		t.Errorf("cached frame = %v", frame)
	}
	if frame["note"] != cacheNote {
		t.Errorf("note = %v, want %q", frame["note"], cacheNote)
	}
	if frame["ltp"] != 2885.5 {
		t.Errorf("ltp = %v, want 2885.5", frame["ltp"])
	}
	// The upstream feed is silent outside market hours; no live subscribe.
	if got := streamer.subscribeCount(); got != 0 {
		t.Errorf("upstream subscribes during closed market = %d, want 0", got)
	}
}

func TestTicksSubscribeManyClosedMarketSkipsUpstream(t *testing.T) {
	streamer := newFakeStreamer()
	streamer.quotes["RELIANCE"] = quotecache.Quote{Alias: "RELIANCE", LTP: 2885.5}
	ts := newTestServer(t, streamer, false)
	conn := dial(t, ts, "/ws/ticks")

	if err := conn.WriteJSON(map[string]any{
		"action": "subscribe_many",
		"symbols": []map[string]any{
			{"stock_code": "RELIANCE.NS"},
			{"stock_code": "UNCACHED"},
		},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["status"] != "ok" || frame["count"] != float64(1) {
		t.Errorf("ack = %v, want ok with count 1 (one cache hit)", frame)
	}
	frame = readFrame(t, conn)
	if frame["symbol"] != "RELIANCE" || frame["note"] != cacheNote {
		t.Errorf("cached frame = %v", frame)
	}
	if got := streamer.subscribeCount(); got != 0 {
		t.Errorf("upstream subscribes during closed market = %d, want 0", got)
	}
}

func TestTicksMalformedFrameKeepsConnection(t *testing.T) {
	streamer := newFakeStreamer()
	ts := newTestServer(t, streamer, true)
	conn := dial(t, ts, "/ws/ticks")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["status"] != "error" {
		t.Errorf("frame = %v, want error ack", frame)
	}

	// Connection still alive.
	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "symbol": "TCS"}); err != nil {
		t.Fatalf("write after malformed: %v", err)
	}
	frame = readFrame(t, conn)
	if frame["status"] != "ok" {
		t.Errorf("frame = %v, want ok ack", frame)
	}
}

func TestOptionsHelloAndChainSubscribe(t *testing.T) {
	streamer := newFakeStreamer()
	ts := newTestServer(t, streamer, true)
	conn := dial(t, ts, "/ws/options")

	frame := readFrame(t, conn)
	if frame["type"] != "hello" {
		t.Fatalf("first frame = %v, want hello", frame)
	}
	if frame["market_open"] != true {
		t.Errorf("market_open = %v, want true", frame["market_open"])
	}

	if err := conn.WriteJSON(map[string]any{
		"action":      "subscribe_options",
		"underlying":  "NIFTY",
		"expiry_date": "2025-02-13",
		"strikes":     []float64{23600, 23700},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readFrame(t, conn)
	if frame["status"] != "ok" {
		t.Fatalf("ack = %v", frame)
	}
	// 2 strikes x both rights.
	if frame["count"] != float64(4) {
		t.Errorf("count = %v, want 4", frame["count"])
	}

	streamer.mu.Lock()
	defer streamer.mu.Unlock()
	if len(streamer.exceptDates) != 1 || streamer.exceptDates[0] != "2025-02-13" {
		t.Errorf("expiry sweep dates = %v, want [2025-02-13]", streamer.exceptDates)
	}
	if len(streamer.pinned) != 1 {
		t.Errorf("pinned = %v, want one client pinned", streamer.pinned)
	}
	for _, d := range streamer.subscribed {
		if d.ProductType != subs.ProductOptions || !strings.Contains("CALL PUT", d.Right) {
			t.Errorf("descriptor = %+v", d)
		}
	}
}

func TestOptionsDepthSubscribe(t *testing.T) {
	streamer := newFakeStreamer()
	ts := newTestServer(t, streamer, true)
	conn := dial(t, ts, "/ws/options")
	readFrame(t, conn) // hello

	if err := conn.WriteJSON(map[string]any{
		"action":      "subscribe_market_depth",
		"underlying":  "NIFTY",
		"expiry_date": "2025-02-13",
		"strikes":     []float64{23600},
		"right":       "CE",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["count"] != float64(1) {
		t.Fatalf("count = %v, want 1 (single right requested)", frame["count"])
	}

	streamer.mu.Lock()
	defer streamer.mu.Unlock()
	d := streamer.subscribed[0]
	if !d.MarketDepth || d.Right != "CALL" {
		t.Errorf("descriptor = %+v, want depth CALL", d)
	}
}

func TestOptionsUnsubscribeAll(t *testing.T) {
	streamer := newFakeStreamer()
	ts := newTestServer(t, streamer, true)
	conn := dial(t, ts, "/ws/options")
	readFrame(t, conn) // hello

	if err := conn.WriteJSON(map[string]any{"action": "unsubscribe_options"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["status"] != "ok" || frame["count"] != float64(2) {
		t.Errorf("frame = %v, want ok with count 2", frame)
	}
}

func TestHealthEndpoint(t *testing.T) {
	streamer := newFakeStreamer()
	ts := newTestServer(t, streamer, true)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", health["status"])
	}
	if health["feed_connected"] != true {
		t.Errorf("feed_connected = %v, want true", health["feed_connected"])
	}
}
