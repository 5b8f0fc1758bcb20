// Package persistence keeps an audit trail of webhook outcomes in the gateway database.
package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"signal-gateway/pkg/db"
)

// Sink stores a batch of log entries; *db.Database implements it.
type Sink interface {
	InsertWebhookLogs(ctx context.Context, entries []db.WebhookLogEntry) error
}

// BatchWriter buffers webhook log entries and writes them in one transaction per batch.
type BatchWriter struct {
	sink        Sink
	log         zerolog.Logger
	mu          sync.Mutex
	buffer      []db.WebhookLogEntry
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once

	totalWrites   uint64
	totalBatches  uint64
	totalErrors   uint64
	lastBatchSize int
	lastFlushTime time.Time
}

// BatchWriterMetrics provides statistics about batch operations.
type BatchWriterMetrics struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	Pending       int       `json:"pending"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

// NewBatchWriter creates a batch writer with specified parameters.
// maxSize: max entries before auto-flush
// interval: time-based flush interval
func NewBatchWriter(sink Sink, maxSize int, interval time.Duration, log zerolog.Logger) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		sink:        sink,
		log:         log,
		buffer:      make([]db.WebhookLogEntry, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()
	return bw
}

// Write queues one entry, flushing when the buffer is full.
func (bw *BatchWriter) Write(e db.WebhookLogEntry) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, e)
	shouldFlush := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if shouldFlush {
		_ = bw.Flush()
	}
}

// Flush immediately writes all buffered entries.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	batch := bw.buffer
	bw.buffer = make([]db.WebhookLogEntry, 0, bw.maxSize)
	bw.mu.Unlock()

	return bw.executeBatch(batch)
}

func (bw *BatchWriter) executeBatch(batch []db.WebhookLogEntry) error {
	atomic.AddUint64(&bw.totalWrites, uint64(len(batch)))
	atomic.AddUint64(&bw.totalBatches, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := bw.sink.InsertWebhookLogs(ctx, batch)

	bw.mu.Lock()
	bw.lastBatchSize = len(batch)
	bw.lastFlushTime = time.Now()
	bw.mu.Unlock()

	if err != nil {
		atomic.AddUint64(&bw.totalErrors, 1)
		bw.log.Error().Err(err).Int("entries", len(batch)).Msg("webhook log batch failed")
		return err
	}
	bw.log.Debug().Int("entries", len(batch)).Msg("webhook log flushed")
	return nil
}

// backgroundFlush periodically flushes the buffer.
func (bw *BatchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = bw.Flush()
		case <-bw.done:
			// Final flush before shutdown
			_ = bw.Flush()
			return
		}
	}
}

// GetMetrics returns the current metrics for the batch writer.
func (bw *BatchWriter) GetMetrics() BatchWriterMetrics {
	bw.mu.Lock()
	size, at, pending := bw.lastBatchSize, bw.lastFlushTime, len(bw.buffer)
	bw.mu.Unlock()
	return BatchWriterMetrics{
		TotalWrites:   atomic.LoadUint64(&bw.totalWrites),
		TotalBatches:  atomic.LoadUint64(&bw.totalBatches),
		TotalErrors:   atomic.LoadUint64(&bw.totalErrors),
		Pending:       pending,
		LastBatchSize: size,
		LastFlushTime: at,
	}
}

// Close flushes what is left and stops the background loop.
func (bw *BatchWriter) Close() error {
	bw.closeOnce.Do(func() { close(bw.done) })
	bw.wg.Wait()
	return nil
}
