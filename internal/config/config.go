package config

import "time"

// ServiceConfig is the root configuration for a tickstream instance.
type ServiceConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Stream   StreamConfig   `yaml:"stream"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this tickstream instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds upstream broker feed settings.
type FeedConfig struct {
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	SessionToken     string        `yaml:"session_token"`
	ConnectAttempts  int           `yaml:"connect_attempts"`
	ConnectBaseDelay time.Duration `yaml:"connect_base_delay"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// StreamConfig holds fan-out settings.
type StreamConfig struct {
	TickBuffer       int           `yaml:"tick_buffer"`
	DebounceInterval time.Duration `yaml:"debounce_interval"`
	DefaultExchange  string        `yaml:"default_exchange"`
	DefaultProduct   string        `yaml:"default_product"`
	OptionExchange   string        `yaml:"option_exchange"`
}

// Cache backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// CacheConfig holds last-known-quote store settings.
type CacheConfig struct {
	// Backend selects the store implementation.
	Backend       string        `yaml:"backend"`
	Postgres      DBConfig      `yaml:"postgres"`
	Redis         RedisConfig   `yaml:"redis"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the Redis connection for the quote cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig holds the downstream WebSocket server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadLimit       int64         `yaml:"read_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
