package server

import (
	"net/http"
	"strconv"

	"github.com/marketdesk/tickstream/internal/subs"
)

// optionRights is the default rights pair when a request names none.
var optionRights = []string{"CALL", "PUT"}

// handleOptions serves option chain clients.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r, true)
	if !ok {
		return
	}
	defer s.release(c)

	c.SendJSON(hello{Type: "hello", ClientID: c.ID(), MarketOpen: s.marketOpen()})

	s.readRequests(c, func(req request) {
		switch req.Action {
		case actionSubscribeOptions:
			s.doSubscribeChain(c, req, false)
		case actionSubscribeDepth:
			s.doSubscribeChain(c, req, true)
		case actionUnsubscribeOptions:
			swept := s.streamer.UnsubscribeAllOptions()
			s.streamer.SetPinnedExpiry(c, "")
			c.SendJSON(okAck(req, swept))
		default:
			c.SendJSON(ack{Type: "ack", Action: req.Action, Status: "error", Error: "unknown action"})
		}
	})
}

// doSubscribeChain subscribes a strike ladder for one underlying and expiry.
// The client is pinned to that expiry, and option subscriptions left over
// from a previous expiry are released.
func (s *Server) doSubscribeChain(c *wsClient, req request, depth bool) {
	if req.Underlying == "" || req.ExpiryDate == "" || len(req.Strikes) == 0 {
		c.SendJSON(errorAck(req, errMissingChainFields))
		return
	}

	s.streamer.SetPinnedExpiry(c, req.ExpiryDate)
	s.streamer.UnsubscribeOptionsExcept(req.ExpiryDate)

	rights := optionRights
	if req.Right != "" {
		rights = []string{subs.NormalizeRight(req.Right)}
	}

	items := make([]subs.Descriptor, 0, len(req.Strikes)*len(rights))
	for _, strike := range req.Strikes {
		for _, right := range rights {
			items = append(items, subs.Descriptor{
				StockCode:    req.Underlying,
				ExchangeCode: req.ExchangeCode,
				ProductType:  subs.ProductOptions,
				ExpiryDate:   req.ExpiryDate,
				StrikePrice:  strconv.FormatFloat(strike, 'f', -1, 64),
				Right:        right,
				MarketDepth:  depth,
			})
		}
	}

	results := s.streamer.SubscribeMany(items)
	okCount := 0
	for _, res := range results {
		if res.Err == nil {
			okCount++
		}
	}
	c.SendJSON(okAck(req, okCount))

	if !s.marketOpen() {
		for _, res := range results {
			if res.Err == nil {
				s.sendCached(c, res.Alias)
			}
		}
	}
}
