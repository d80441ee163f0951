// Package hub fans normalized ticks out to downstream WebSocket clients.
//
// Clients register into one of two sets: the plain set receives quote ticks,
// the option set receives option quotes and depth updates. Per client the hub
// applies a pinned-expiry filter and a per-alias debounce window, and drops a
// client silently on the first failed send.
package hub
