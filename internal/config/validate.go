package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ServiceConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.ConnectAttempts < 1 {
		return errors.New("feed.connect_attempts must be >= 1")
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	if c.Stream.TickBuffer < 1 {
		return errors.New("stream.tick_buffer must be >= 1")
	}
	if c.Stream.DebounceInterval < 0 {
		return errors.New("stream.debounce_interval must be >= 0")
	}

	switch c.Cache.Backend {
	case BackendPostgres:
		if err := c.Cache.Postgres.validate("cache.postgres"); err != nil {
			return err
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("cache.backend must be postgres, redis, or memory, got %q", c.Cache.Backend)
	}
	if c.Cache.BatchSize < 1 {
		return errors.New("cache.batch_size must be >= 1")
	}
	if c.Cache.BufferSize < 1 {
		return errors.New("cache.buffer_size must be >= 1")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
