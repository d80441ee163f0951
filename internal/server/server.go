package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketdesk/tickstream/internal/config"
	"github.com/marketdesk/tickstream/internal/hub"
	"github.com/marketdesk/tickstream/internal/quotecache"
	"github.com/marketdesk/tickstream/internal/subs"
	"github.com/marketdesk/tickstream/internal/version"
)

// Streamer is the stream-manager surface the handlers drive.
type Streamer interface {
	Subscribe(d subs.Descriptor) (subs.Record, error)
	SubscribeMany(items []subs.Descriptor) []subs.Result
	Unsubscribe(key string) error
	UnsubscribeMany(keys []string)
	UnsubscribeAllOptions() int
	UnsubscribeOptionsExcept(keepDate string) int

	RegisterClient(c hub.Client, option bool)
	UnregisterClient(c hub.Client)
	SetPinnedExpiry(c hub.Client, date string)

	LastQuote(ctx context.Context, alias string) (quotecache.Quote, error)
	IsFeedConnected() bool
	ClientCounts() (plain, option int)
	SubscriptionCount() int
}

// Server hosts the downstream WebSocket API.
type Server struct {
	cfg      config.ServerConfig
	streamer Streamer
	logger   *slog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	// now is swapped out by tests of the market-hours gate.
	now func() time.Time
}

// NewServer creates the API server.
func NewServer(cfg config.ServerConfig, streamer Streamer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		streamer: streamer,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser dashboards connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ticks", s.handleTicks)
	mux.HandleFunc("/ws/options", s.handleOptions)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start begins serving. It returns once the listener is running.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}
	go func() {
		s.logger.Info("api server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// marketOpen applies the session gate.
func (s *Server) marketOpen() bool {
	return IsMarketOpen(s.now())
}

// handleHealth reports service state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plain, option := s.streamer.ClientCounts()
	health := struct {
		Status        string `json:"status"`
		Version       string `json:"version"`
		FeedConnected bool   `json:"feed_connected"`
		MarketOpen    bool   `json:"market_open"`
		PlainClients  int    `json:"plain_clients"`
		OptionClients int    `json:"option_clients"`
		Subscriptions int    `json:"subscriptions"`
	}{
		Status:        "healthy",
		Version:       version.Version,
		FeedConnected: s.streamer.IsFeedConnected(),
		MarketOpen:    s.marketOpen(),
		PlainClients:  plain,
		OptionClients: option,
		Subscriptions: s.streamer.SubscriptionCount(),
	}
	if !health.FeedConnected && health.MarketOpen {
		health.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// upgrade upgrades the request and registers the client in the hub.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, option bool) (*wsClient, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return nil, false
	}
	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	c := newWSClient(conn, s.cfg.WriteTimeout)
	s.streamer.RegisterClient(c, option)
	s.logger.Info("client connected", "client_id", c.ID(), "option", option, "remote", r.RemoteAddr)
	return c, true
}

// release tears a client down after its read loop ends.
func (s *Server) release(c *wsClient) {
	s.streamer.UnregisterClient(c)
	_ = c.Close()
	s.logger.Info("client disconnected", "client_id", c.ID())
}

// readRequests decodes action frames until the connection drops, invoking
// handle per frame. Malformed frames get an error ack and the loop continues.
func (s *Server) readRequests(c *wsClient, handle func(req request)) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			c.SendJSON(ack{Type: "ack", Status: "error", Error: "malformed request"})
			continue
		}
		handle(req)
	}
}

// lookupCached fetches one alias from the cache.
func (s *Server) lookupCached(alias string) (quotecache.Quote, bool) {
	if alias == "" {
		return quotecache.Quote{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q, err := s.streamer.LastQuote(ctx, alias)
	if err != nil {
		return quotecache.Quote{}, false
	}
	return q, true
}

// sendCached answers one alias from the cache. Missing entries send nothing;
// the return reports whether a frame went out.
func (s *Server) sendCached(c *wsClient, alias string) bool {
	q, ok := s.lookupCached(alias)
	if !ok {
		return false
	}
	return c.SendJSON(newCachedFrame(q)) == nil
}
