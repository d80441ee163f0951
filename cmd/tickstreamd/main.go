package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marketdesk/tickstream/internal/config"
	"github.com/marketdesk/tickstream/internal/feed"
	"github.com/marketdesk/tickstream/internal/quotecache"
	"github.com/marketdesk/tickstream/internal/server"
	"github.com/marketdesk/tickstream/internal/stream"
	"github.com/marketdesk/tickstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tickstream.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tickstreamd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"feed_url", cfg.Feed.URL,
		"cache_backend", cfg.Cache.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open the quote cache backend. Backend failures fall back to the
	// in-process store so the stream keeps running.
	store := openStore(ctx, cfg.Cache, logger)
	defer store.Close()

	writer := quotecache.NewWriter(quotecache.WriterConfig{
		BatchSize:     cfg.Cache.BatchSize,
		FlushInterval: cfg.Cache.FlushInterval,
		BufferSize:    cfg.Cache.BufferSize,
	}, store, logger)

	// Upstream feed connector
	connector := feed.NewConnector(feed.ConnectorConfig{
		Client: feed.ClientConfig{
			URL:          cfg.Feed.URL,
			APIKey:       cfg.Feed.APIKey,
			SessionToken: cfg.Feed.SessionToken,
			PingTimeout:  cfg.Feed.PingTimeout,
			WriteTimeout: cfg.Feed.WriteTimeout,
			BufferSize:   cfg.Feed.BufferSize,
		},
		ConnectAttempts:  cfg.Feed.ConnectAttempts,
		ConnectBaseDelay: cfg.Feed.ConnectBaseDelay,
	}, logger)

	// Tick pipeline
	manager := stream.NewManager(cfg.Stream, connector, store, writer, logger)
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start stream manager", "error", err)
		os.Exit(1)
	}

	// Downstream API
	apiServer := server.NewServer(cfg.Server, manager, logger)
	if err := apiServer.Start(ctx); err != nil {
		logger.Error("failed to start api server", "error", err)
		os.Exit(1)
	}

	logger.Info("tickstreamd running",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Addr,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error { return apiServer.Stop(gctx) })
	g.Go(func() error { return manager.Stop(gctx) })
	if err := g.Wait(); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	logger.Info("tickstreamd stopped")
}

// openStore selects the cache backend, falling back to memory when the
// configured backend cannot be reached.
func openStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) quotecache.Store {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := quotecache.NewPostgresStore(connectCtx, cfg.Postgres)
		if err != nil {
			logger.Warn("postgres cache unavailable, using memory store", "error", err)
			return quotecache.NewMemoryStore()
		}
		logger.Info("quote cache backend ready", "backend", "postgres", "host", cfg.Postgres.Host)
		return store
	case config.BackendRedis:
		store, err := quotecache.NewRedisStore(connectCtx, cfg.Redis)
		if err != nil {
			logger.Warn("redis cache unavailable, using memory store", "error", err)
			return quotecache.NewMemoryStore()
		}
		logger.Info("quote cache backend ready", "backend", "redis", "addr", cfg.Redis.Addr)
		return store
	default:
		logger.Info("quote cache backend ready", "backend", "memory")
		return quotecache.NewMemoryStore()
	}
}
