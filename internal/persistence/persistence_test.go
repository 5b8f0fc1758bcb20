package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signal-gateway/internal/events"
	"signal-gateway/pkg/db"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]db.WebhookLogEntry
	err     error
}

func (s *recordingSink) InsertWebhookLogs(_ context.Context, entries []db.WebhookLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]db.WebhookLogEntry(nil), entries...))
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestBatchWriterFlushesAtMaxSize(t *testing.T) {
	sink := &recordingSink{}
	bw := NewBatchWriter(sink, 3, time.Hour, zerolog.Nop())
	defer bw.Close()

	for i := 0; i < 3; i++ {
		bw.Write(db.WebhookLogEntry{Origin: "standard", Result: "published"})
	}
	if sink.count() != 3 || bw.GetMetrics().Pending != 0 {
		t.Errorf("written=%d pending=%d", sink.count(), bw.GetMetrics().Pending)
	}
	m := bw.GetMetrics()
	if m.TotalWrites != 3 || m.TotalBatches != 1 || m.LastBatchSize != 3 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestBatchWriterCloseFlushes(t *testing.T) {
	sink := &recordingSink{}
	bw := NewBatchWriter(sink, 100, time.Hour, zerolog.Nop())
	bw.Write(db.WebhookLogEntry{Origin: "custom", Result: "rejected"})
	if bw.GetMetrics().Pending != 1 {
		t.Fatalf("pending = %d", bw.GetMetrics().Pending)
	}
	bw.Close()
	bw.Close()
	if sink.count() != 1 {
		t.Errorf("written = %d after Close", sink.count())
	}
}

func TestBatchWriterCountsErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk I/O error")}
	bw := NewBatchWriter(sink, 100, time.Hour, zerolog.Nop())
	defer bw.Close()

	bw.Write(db.WebhookLogEntry{Origin: "custom", Result: "published"})
	if err := bw.Flush(); err == nil {
		t.Fatal("expected flush error")
	}
	if bw.GetMetrics().TotalErrors != 1 {
		t.Errorf("errors = %d", bw.GetMetrics().TotalErrors)
	}
}

func TestRecorderWritesToDatabase(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	bus := events.NewBus()
	bw := NewBatchWriter(database, 100, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	(&Recorder{Bus: bus, Writer: bw, Log: zerolog.Nop()}).Start(ctx)

	now := time.Now().UTC()
	bus.Publish(events.EventSignalPublished, events.SignalPublished{
		EventStore: "signal_stream",
		Origin:     "standard",
		Signal:     map[string]any{"tv_signal_id": "abc_5"},
		At:         now,
	})
	bus.Publish(events.EventSignalRejected, events.SignalRejected{
		RequestID: "req-1",
		Origin:    "custom",
		Kind:      "not_found",
		Reason:    "Channel ghost not found!",
		At:        now,
	})

	deadline := time.Now().Add(2 * time.Second)
	for bw.GetMetrics().Pending < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("recorder queued %d entries", bw.GetMetrics().Pending)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	entries, err := database.ListWebhookLog(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListWebhookLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	byResult := map[string]db.WebhookLogEntry{}
	for _, e := range entries {
		byResult[e.Result] = e
	}
	if e := byResult["published"]; e.TVSignalID != "abc_5" || e.EventStore != "signal_stream" || e.Origin != "standard" {
		t.Errorf("published entry = %+v", e)
	}
	if e := byResult["rejected"]; e.RequestID != "req-1" || e.Kind != "not_found" || e.Origin != "custom" {
		t.Errorf("rejected entry = %+v", e)
	}
}
