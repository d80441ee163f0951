package quotecache

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordStore captures every flushed batch.
type recordStore struct {
	mu      sync.Mutex
	batches [][]Quote
}

func (s *recordStore) UpsertBatch(ctx context.Context, quotes []Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]Quote, len(quotes))
	copy(batch, quotes)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordStore) Get(ctx context.Context, alias string) (Quote, error) {
	return Quote{}, ErrNotFound
}

func (s *recordStore) Close() {}

func (s *recordStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestWriterFlushesOnBatchSize(t *testing.T) {
	store := &recordStore{}
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 16}, store, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Put(Quote{Alias: "A", LTP: 1})
	w.Put(Quote{Alias: "B", LTP: 2})

	deadline := time.Now().Add(time.Second)
	for store.total() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("batch never flushed, wrote %d rows", store.total())
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestWriterStopFlushesPartialBatch(t *testing.T) {
	store := &recordStore{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 16}, store, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Put(Quote{Alias: "A", LTP: 1})
	// Give the consumer a moment to move the quote into the batch.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if store.total() != 1 {
		t.Errorf("rows = %d, want 1 (final flush on stop)", store.total())
	}
}

func TestWriterPutNeverBlocks(t *testing.T) {
	store := &recordStore{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 1}, store, nil)
	// Not started: the buffer fills and further Puts must drop, not block.
	for i := 0; i < 10; i++ {
		w.Put(Quote{Alias: "A", LTP: float64(i)})
	}
	if w.Dropped() == 0 {
		t.Error("expected drops on a full unconsumed buffer")
	}
}
