// Package quotecache persists the last known quote per alias.
//
// The cache is what lets the service answer subscriptions outside market
// hours: when the upstream feed is silent, downstream clients get the cached
// last-traded price instead of nothing. Three Store backends exist (Postgres,
// Redis, in-process memory); Writer batches tick-rate upserts so the hot path
// never blocks on the backend.
package quotecache
