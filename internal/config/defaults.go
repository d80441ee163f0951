package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultFeedURL          = "wss://livestream.icicidirect.com/feed"
	DefaultConnectAttempts  = 5
	DefaultConnectBaseDelay = 1 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultFeedWriteTimeout = 5 * time.Second
	DefaultFeedBufferSize   = 10000
	DefaultTickBuffer       = 4096
	DefaultDebounceInterval = 250 * time.Millisecond
	DefaultExchange         = "NSE"
	DefaultProduct          = "cash"
	DefaultOptionExchange   = "NFO"
	DefaultCacheBackend     = "memory"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultRedisAddr        = "localhost:6379"
	DefaultCacheBatchSize   = 200
	DefaultCacheFlush       = 1 * time.Second
	DefaultCacheBufferSize  = 10000
	DefaultServerAddr       = ":8000"
	DefaultWSWriteTimeout   = 5 * time.Second
	DefaultWSReadLimit      = 1 << 20
	DefaultShutdownTimeout  = 10 * time.Second
)

func (c *ServiceConfig) applyDefaults() {
	// Feed defaults
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.ConnectAttempts == 0 {
		c.Feed.ConnectAttempts = DefaultConnectAttempts
	}
	if c.Feed.ConnectBaseDelay == 0 {
		c.Feed.ConnectBaseDelay = DefaultConnectBaseDelay
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Stream defaults
	if c.Stream.TickBuffer == 0 {
		c.Stream.TickBuffer = DefaultTickBuffer
	}
	if c.Stream.DebounceInterval == 0 {
		c.Stream.DebounceInterval = DefaultDebounceInterval
	}
	if c.Stream.DefaultExchange == "" {
		c.Stream.DefaultExchange = DefaultExchange
	}
	if c.Stream.DefaultProduct == "" {
		c.Stream.DefaultProduct = DefaultProduct
	}
	if c.Stream.OptionExchange == "" {
		c.Stream.OptionExchange = DefaultOptionExchange
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.BatchSize == 0 {
		c.Cache.BatchSize = DefaultCacheBatchSize
	}
	if c.Cache.FlushInterval == 0 {
		c.Cache.FlushInterval = DefaultCacheFlush
	}
	if c.Cache.BufferSize == 0 {
		c.Cache.BufferSize = DefaultCacheBufferSize
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = DefaultRedisAddr
	}
	applyDBDefaults(&c.Cache.Postgres)

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWSWriteTimeout
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultWSReadLimit
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
