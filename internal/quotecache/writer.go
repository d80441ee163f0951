package quotecache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WriterConfig configures the batching cache writer.
type WriterConfig struct {
	BatchSize     int           // rows per backend round trip
	FlushInterval time.Duration // max age of a partial batch
	BufferSize    int           // input channel capacity
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     200,
		FlushInterval: time.Second,
		BufferSize:    4096,
	}
}

// Writer batches quote upserts so the tick hot path never waits on the
// backend. Put is non-blocking; when the buffer is full the quote is dropped,
// since a later tick for the same alias supersedes it anyway.
type Writer struct {
	cfg    WriterConfig
	store  Store
	logger *slog.Logger

	input chan Quote

	batchMu sync.Mutex
	batch   []Quote
	dropped int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a writer in front of store.
func NewWriter(cfg WriterConfig, store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &Writer{
		cfg:    cfg,
		store:  store,
		logger: logger,
		input:  make(chan Quote, cfg.BufferSize),
		batch:  make([]Quote, 0, cfg.BatchSize),
	}
}

// Start begins consuming and flushing.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("cache writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains goroutines and flushes the final partial batch.
func (w *Writer) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("cache writer stop timed out")
	}

	w.flush()
	w.logger.Info("cache writer stopped")
	return nil
}

// Put enqueues one quote without blocking.
func (w *Writer) Put(q Quote) {
	select {
	case w.input <- q:
	default:
		w.batchMu.Lock()
		w.dropped++
		n := w.dropped
		w.batchMu.Unlock()
		if n%1000 == 1 {
			w.logger.Warn("cache writer buffer full, dropping quotes", "dropped", n)
		}
	}
}

// Dropped returns the count of quotes dropped on a full buffer.
func (w *Writer) Dropped() int64 {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.dropped
}

// consumeLoop accumulates input into batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case q := <-w.input:
			w.batchMu.Lock()
			w.batch = append(w.batch, q)
			full := len(w.batch) >= w.cfg.BatchSize
			w.batchMu.Unlock()
			if full {
				w.flush()
			}
		}
	}
}

// flushLoop flushes partial batches on a timer.
func (w *Writer) flushLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush writes the pending batch. Backend errors are logged and the batch is
// discarded; the cache is advisory and newer ticks will refill it.
func (w *Writer) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]Quote, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.UpsertBatch(ctx, batch); err != nil {
		w.logger.Warn("cache flush failed", "rows", len(batch), "error", err)
	}
}
