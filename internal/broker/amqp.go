package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type AMQPConfig struct {
	URL             string
	ExchangeType    string
	Durable         bool
	ContentType     string
	ContentEncoding string
	DeliveryMode    uint8
	AppID           string
}

// AMQP publishes to a RabbitMQ exchange, declaring the exchange, queue and binding of each
// event store on first use. A broken connection is redialed on the next publish.
type AMQP struct {
	cfg AMQPConfig
	log zerolog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	closed   bool
}

func NewAMQP(cfg AMQPConfig, log zerolog.Logger) (*AMQP, error) {
	a := &AMQP{cfg: cfg, log: log}
	if err := a.connect(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AMQP) connect() error {
	conn, err := amqp.Dial(a.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	a.conn, a.ch = conn, ch
	a.declared = make(map[string]bool)
	return nil
}

func (a *AMQP) Publish(ctx context.Context, eventStore, routingKey string, msg map[string]any) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}
	exchange, queue := Names(eventStore)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.conn == nil || a.conn.IsClosed() || a.ch == nil || a.ch.IsClosed() {
		a.log.Warn().Msg("amqp connection lost, reconnecting")
		a.resetLocked()
		if err := a.connect(); err != nil {
			return err
		}
	}
	if err := a.declareLocked(exchange, queue, routingKey); err != nil {
		a.resetLocked()
		return err
	}
	if err := a.ch.PublishWithContext(ctx, exchange, routingKey, false, false, a.publishing(body)); err != nil {
		a.resetLocked()
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	return nil
}

func (a *AMQP) declareLocked(exchange, queue, routingKey string) error {
	key := exchange + "|" + queue + "|" + routingKey
	if a.declared[key] {
		return nil
	}
	if err := a.ch.ExchangeDeclare(exchange, a.cfg.ExchangeType, a.cfg.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := a.ch.QueueDeclare(queue, a.cfg.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := a.ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue, exchange, err)
	}
	a.declared[key] = true
	return nil
}

func (a *AMQP) publishing(body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:     a.cfg.ContentType,
		ContentEncoding: a.cfg.ContentEncoding,
		DeliveryMode:    a.cfg.DeliveryMode,
		MessageId:       uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		AppId:           a.cfg.AppID,
		Body:            body,
	}
}

func (a *AMQP) resetLocked() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.ch, a.conn = nil, nil
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.resetLocked()
	return nil
}
