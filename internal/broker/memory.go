package broker

import (
	"context"
	"sync"
)

// Delivery is one message accepted by the memory broker.
type Delivery struct {
	Exchange   string
	Queue      string
	RoutingKey string
	Body       []byte
}

// Memory keeps published messages in process. It backs BROKER_KIND=memory and tests.
type Memory struct {
	mu         sync.Mutex
	deliveries []Delivery
	limit      int
	closed     bool
}

// NewMemory keeps at most limit deliveries, dropping the oldest; limit <= 0 keeps all.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

func (m *Memory) Publish(_ context.Context, eventStore, routingKey string, msg map[string]any) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}
	exchange, queue := Names(eventStore)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.deliveries = append(m.deliveries, Delivery{
		Exchange:   exchange,
		Queue:      queue,
		RoutingKey: routingKey,
		Body:       body,
	})
	if m.limit > 0 && len(m.deliveries) > m.limit {
		m.deliveries = m.deliveries[len(m.deliveries)-m.limit:]
	}
	return nil
}

// Deliveries returns a copy of the retained messages, oldest first.
func (m *Memory) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
