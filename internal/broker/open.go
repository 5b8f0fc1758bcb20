package broker

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	KindAMQP   = "amqp"
	KindRedis  = "redis"
	KindMemory = "memory"
)

type Config struct {
	Kind  string
	AMQP  AMQPConfig
	Redis RedisConfig
}

// Open connects the publisher selected by cfg.Kind.
func Open(cfg Config, log zerolog.Logger) (Publisher, error) {
	switch cfg.Kind {
	case KindAMQP:
		return NewAMQP(cfg.AMQP, log)
	case KindRedis:
		return NewRedis(cfg.Redis)
	case KindMemory:
		return NewMemory(1000), nil
	}
	return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
}
