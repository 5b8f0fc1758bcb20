// Package broker delivers canonical signals to the downstream event store.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signal-gateway/internal/events"
)

// Publisher hands one message to the event store named eventStore, routed by routingKey.
// Delivery is at-most-once from the caller's point of view.
type Publisher interface {
	Publish(ctx context.Context, eventStore, routingKey string, msg map[string]any) error
	Close() error
}

// Names returns the exchange and queue names of an event store.
func Names(eventStore string) (exchange, queue string) {
	return eventStore + "_exchange", eventStore + "_queue"
}

func encode(msg map[string]any) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return body, nil
}

// Tee publishes through next and, on success, announces the message on the bus. The
// announced copy never carries the webhook secret.
type Tee struct {
	next   Publisher
	bus    *events.Bus
	origin func(map[string]any) string
}

func NewTee(next Publisher, bus *events.Bus) *Tee {
	return &Tee{next: next, bus: bus, origin: originOf}
}

func (t *Tee) Publish(ctx context.Context, eventStore, routingKey string, msg map[string]any) error {
	if err := t.next.Publish(ctx, eventStore, routingKey, msg); err != nil {
		return err
	}
	if t.bus != nil {
		t.bus.Publish(events.EventSignalPublished, events.SignalPublished{
			EventStore: eventStore,
			RoutingKey: routingKey,
			Origin:     t.origin(msg),
			Signal:     redact(msg),
			At:         time.Now().UTC(),
		})
	}
	return nil
}

func (t *Tee) Close() error { return t.next.Close() }

// redact copies msg without the keys bus subscribers must not see.
func redact(msg map[string]any) map[string]any {
	out := make(map[string]any, len(msg))
	for k, v := range msg {
		if k == "webhook_secret" {
			continue
		}
		out[k] = v
	}
	return out
}

// originOf tells standard from custom signals by the fields only each carries.
func originOf(msg map[string]any) string {
	if _, ok := msg["webhook_secret"]; ok {
		return "custom"
	}
	return "standard"
}
