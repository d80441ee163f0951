// Package server exposes the downstream WebSocket API.
//
// Two endpoints carry the live stream: /ws/ticks for plain quote clients and
// /ws/options for option chain clients. Both accept JSON action frames for
// subscribe/unsubscribe and push normalized tick frames back. Outside market
// hours subscribe actions answer from the last-known-quote cache so clients
// still render prices. /health reports feed and client state.
package server
