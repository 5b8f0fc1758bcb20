package persistence

import (
	"context"

	"github.com/rs/zerolog"

	"signal-gateway/internal/events"
	"signal-gateway/pkg/db"
)

// Recorder turns bus events into webhook log entries.
type Recorder struct {
	Bus    *events.Bus
	Writer *BatchWriter
	Log    zerolog.Logger
}

// Start subscribes to published and rejected signals until ctx is done.
func (r *Recorder) Start(ctx context.Context) {
	published, unsubPublished := r.Bus.Subscribe(events.EventSignalPublished, 256)
	rejected, unsubRejected := r.Bus.Subscribe(events.EventSignalRejected, 256)
	go func() {
		defer unsubPublished()
		defer unsubRejected()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-published:
				if !ok {
					return
				}
				if ev, ok := msg.(events.SignalPublished); ok {
					r.Writer.Write(publishedEntry(ev))
				}
			case msg, ok := <-rejected:
				if !ok {
					return
				}
				if ev, ok := msg.(events.SignalRejected); ok {
					r.Writer.Write(rejectedEntry(ev))
				}
			}
		}
	}()
}

func publishedEntry(ev events.SignalPublished) db.WebhookLogEntry {
	id, _ := ev.Signal["tv_signal_id"].(string)
	return db.WebhookLogEntry{
		Origin:     ev.Origin,
		Result:     "published",
		TVSignalID: id,
		EventStore: ev.EventStore,
		CreatedAt:  ev.At,
	}
}

func rejectedEntry(ev events.SignalRejected) db.WebhookLogEntry {
	return db.WebhookLogEntry{
		RequestID: ev.RequestID,
		Origin:    ev.Origin,
		Result:    "rejected",
		Kind:      ev.Kind,
		Reason:    ev.Reason,
		CreatedAt: ev.At,
	}
}
