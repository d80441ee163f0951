// Package stream wires the upstream feed, the subscription registry, the
// client hub, and the quote cache into one pipeline.
//
// The feed callback does the minimum: normalize the payload and hand it to a
// bounded channel. One consumer goroutine drains that channel, updates the
// cache writer, and broadcasts to clients, so a burst of upstream ticks can
// never stack unbounded goroutines behind a slow consumer. When the channel
// is full the tick is dropped and counted.
package stream
