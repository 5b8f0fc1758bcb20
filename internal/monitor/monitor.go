package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signal-gateway/internal/events"
)

// Monitor consumes rejected-signal events: it counts them and raises an alert for internal
// errors, which callers only ever see as a generic message.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	Sink    AlertSink
	Log     zerolog.Logger
}

// Start subscribes and processes events until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Metrics == nil {
		m.Log.Warn().Msg("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(events.EventSignalRejected, 256)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				if ev, ok := msg.(events.SignalRejected); ok {
					m.handle(ev)
				}
			}
		}
	}()
}

func (m *Monitor) handle(ev events.SignalRejected) {
	m.Metrics.SignalRejected(ev.Origin, ev.Kind)
	if ev.Kind != "unexpected" || m.Sink == nil {
		return
	}
	if err := m.Sink.Send(formatAlert(ev)); err != nil {
		m.Log.Warn().Err(err).Msg("alert delivery failed")
	}
}

func formatAlert(ev events.SignalRejected) string {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("[%s] request %s failed: %s", at.Format(time.RFC3339), ev.RequestID, ev.Reason)
}
