package server

import (
	"net/http"
	"strings"

	"github.com/marketdesk/tickstream/internal/subs"
)

// handleTicks serves plain quote clients.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r, false)
	if !ok {
		return
	}
	defer s.release(c)

	s.readRequests(c, func(req request) {
		switch req.Action {
		case actionSubscribe:
			s.doSubscribe(c, req)
		case actionSubscribeMany:
			s.doSubscribeMany(c, req)
		case actionUnsubscribe:
			if err := s.streamer.Unsubscribe(req.Symbol); err != nil {
				c.SendJSON(errorAck(req, err))
				return
			}
			c.SendJSON(okAck(req, 0))
		case actionUnsubscribeMany:
			s.streamer.UnsubscribeMany(req.Keys)
			c.SendJSON(okAck(req, len(req.Keys)))
		default:
			c.SendJSON(ack{Type: "ack", Action: req.Action, Status: "error", Error: "unknown action"})
		}
	})
}

// doSubscribe handles the single-instrument subscribe action. Outside market
// hours the upstream feed is silent, so the live subscribe is skipped and the
// client gets the cached last known quote instead.
func (s *Server) doSubscribe(c *wsClient, req request) {
	if !s.marketOpen() {
		c.SendJSON(okAck(req, 0))
		s.sendCached(c, cachedAlias(s.descriptorFrom(req)))
		return
	}

	_, err := s.streamer.Subscribe(s.descriptorFrom(req))
	if err != nil {
		c.SendJSON(errorAck(req, err))
		return
	}
	c.SendJSON(okAck(req, 0))
}

// doSubscribeMany handles the batch subscribe action. The closed-market path
// answers every item from the cache without touching the upstream.
func (s *Server) doSubscribeMany(c *wsClient, req request) {
	if !s.marketOpen() {
		var frames []cachedFrame
		for _, d := range req.Symbols {
			if q, ok := s.lookupCached(cachedAlias(d)); ok {
				frames = append(frames, newCachedFrame(q))
			}
		}
		c.SendJSON(okAck(req, len(frames)))
		for _, frame := range frames {
			c.SendJSON(frame)
		}
		return
	}

	results := s.streamer.SubscribeMany(req.Symbols)
	okCount := 0
	for _, res := range results {
		if res.Err == nil {
			okCount++
		}
	}
	c.SendJSON(okAck(req, okCount))
}

// cachedAlias derives the cache lookup key for a descriptor that was never
// registered because the market is closed.
func cachedAlias(d subs.Descriptor) string {
	if d.Alias != "" {
		return strings.ToUpper(d.Alias)
	}
	if d.StockCode != "" {
		return strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(d.StockCode), ".NS"))
	}
	return strings.ToUpper(strings.TrimSpace(d.Token))
}

// descriptorFrom maps a single-instrument request onto a descriptor.
func (s *Server) descriptorFrom(req request) subs.Descriptor {
	return subs.Descriptor{
		StockCode:    req.Symbol,
		Token:        req.Token,
		ExchangeCode: req.ExchangeCode,
		ProductType:  req.ProductType,
	}
}

func okAck(req request, count int) ack {
	return ack{Type: "ack", Action: req.Action, Status: "ok", Symbol: req.Symbol, Count: count}
}

func errorAck(req request, err error) ack {
	return ack{Type: "ack", Action: req.Action, Status: "error", Symbol: req.Symbol, Error: err.Error()}
}
