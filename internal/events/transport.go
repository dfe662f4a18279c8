package events

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TransportRedis = "redis"
	TransportAMQP  = "amqp"
)

// Bus is a connected transport. Close releases broker resources; it is a
// no-op for Redis, whose client is owned by the caller.
type Bus struct {
	Publisher
	Subscriber
	close func() error
}

func (b *Bus) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

type TransportConfig struct {
	Transport    string
	AMQPURL      string
	AMQPExchange string
	// QueuePrefix names the consuming service so each one gets its own
	// copy of every event.
	QueuePrefix string
}

func Open(cfg TransportConfig, rdb *redis.Client, log *zap.Logger) (*Bus, error) {
	switch cfg.Transport {
	case TransportRedis, "":
		if rdb == nil {
			return nil, fmt.Errorf("redis transport needs a client")
		}
		return &Bus{
			Publisher:  NewRedisPublisher(rdb, log),
			Subscriber: NewRedisSubscriber(rdb, log),
		}, nil
	case TransportAMQP:
		b, err := NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, cfg.QueuePrefix, log)
		if err != nil {
			return nil, err
		}
		return &Bus{Publisher: b, Subscriber: b, close: b.Close}, nil
	default:
		return nil, fmt.Errorf("unknown notify transport %q", cfg.Transport)
	}
}
