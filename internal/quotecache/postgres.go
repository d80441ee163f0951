package quotecache

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdesk/tickstream/internal/config"
)

const createLTPCacheSQL = `
CREATE TABLE IF NOT EXISTS ltp_cache (
    symbol     TEXT PRIMARY KEY,
    ltp        DOUBLE PRECISION NOT NULL,
    close      DOUBLE PRECISION,
    bid        DOUBLE PRECISION,
    ask        DOUBLE PRECISION,
    change_pct DOUBLE PRECISION,
    tick_ts    TEXT,
    updated_at TIMESTAMPTZ NOT NULL
)`

const upsertQuoteSQL = `
INSERT INTO ltp_cache (symbol, ltp, close, bid, ask, change_pct, tick_ts, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol) DO UPDATE SET
    ltp        = EXCLUDED.ltp,
    close      = EXCLUDED.close,
    bid        = EXCLUDED.bid,
    ask        = EXCLUDED.ask,
    change_pct = EXCLUDED.change_pct,
    tick_ts    = EXCLUDED.tick_ts,
    updated_at = EXCLUDED.updated_at`

const getQuoteSQL = `
SELECT symbol, ltp, close, bid, ask, change_pct, tick_ts, updated_at
FROM ltp_cache WHERE symbol = $1`

// PostgresStore persists quotes in the ltp_cache table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool, verifies it, and ensures the schema.
func NewPostgresStore(ctx context.Context, cfg config.DBConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createLTPCacheSQL); err != nil {
		return fmt.Errorf("create ltp_cache: %w", err)
	}
	return nil
}

// UpsertBatch writes the batch in a single round trip.
func (s *PostgresStore) UpsertBatch(ctx context.Context, quotes []Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(upsertQuoteSQL,
			q.Alias, q.LTP, q.Close, q.Bid, q.Ask, q.ChangePct, q.Timestamp, q.UpdatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range quotes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert quote batch: %w", err)
		}
	}
	return nil
}

// Get returns the cached quote for alias, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, alias string) (Quote, error) {
	var q Quote
	err := s.pool.QueryRow(ctx, getQuoteSQL, alias).Scan(
		&q.Alias, &q.LTP, &q.Close, &q.Bid, &q.Ask, &q.ChangePct, &q.Timestamp, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	return q, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// connString builds a PostgreSQL connection string from config.
func connString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
