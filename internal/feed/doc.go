// Package feed owns the single upstream broker WebSocket connection.
//
// Client wraps one raw WebSocket with write serialization, ping/pong
// handling, and buffered message/error channels. Connector layers the broker
// command protocol on top: it translates subscription calls into upstream
// command frames, connects lazily with bounded retry, and delivers every
// inbound payload to one registered tick callback.
package feed
