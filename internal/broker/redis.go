package broker

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

type RedisConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	MaxLen   int64 // approximate stream cap; 0 keeps everything
	Instance string
}

// Redis appends signals to the stream named after the event store's queue.
type Redis struct {
	client   *goredis.Client
	maxLen   int64
	instance string
}

// NewRedis creates the client and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, maxLen: cfg.MaxLen, instance: cfg.Instance}, nil
}

func (r *Redis) Publish(ctx context.Context, eventStore, routingKey string, msg map[string]any) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}
	exchange, queue := Names(eventStore)
	err = r.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: queue,
		MaxLen: r.maxLen,
		Approx: r.maxLen > 0,
		Values: streamValues(exchange, routingKey, body, r.instance),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", queue, err)
	}
	return nil
}

func streamValues(exchange, routingKey string, body []byte, instance string) map[string]interface{} {
	return map[string]interface{}{
		"exchange":    exchange,
		"routing_key": routingKey,
		"payload":     string(body),
		"instance":    instance,
	}
}

func (r *Redis) Close() error { return r.client.Close() }
