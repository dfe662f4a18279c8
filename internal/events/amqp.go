package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPBus publishes events to a topic exchange, using the stream name as
// routing key, and consumes them through durable per-stream queues.
type AMQPBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string // queue name prefix for subscriptions
	log      *zap.Logger
}

func NewAMQPBus(url, exchange, queuePrefix string, log *zap.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPBus{conn: conn, ch: ch, exchange: exchange, queue: queuePrefix, log: log}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, stream string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.ch.PublishWithContext(ctx, b.exchange, stream, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event.Type,
		Body:         body,
	})
}

func (b *AMQPBus) Subscribe(ctx context.Context, stream string, handler func(context.Context, Event)) error {
	q, err := b.ch.QueueDeclare(b.queue+"."+stream, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.ch.QueueBind(q.Name, stream, b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", stream, err)
	}
	deliveries, err := b.ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	go func() {
		for d := range deliveries {
			var event Event
			if err := json.Unmarshal(d.Body, &event); err != nil {
				b.log.Error("failed to unmarshal event", zap.String("stream", stream), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			handler(ctx, event)
			_ = d.Ack(false)
		}
	}()
	return nil
}

func (b *AMQPBus) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
