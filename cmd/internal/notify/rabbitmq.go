// Package notify delivers booking engine events outside the process.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/config"
)

// Publisher sends each event as a persistent JSON message to a durable queue
// named after the event type, e.g. "booking.confirmed". It dials per event;
// the volume is a handful of messages per booking.
type Publisher struct {
	url     string
	prefix  string
	timeout time.Duration
	dial    func(url string) (channel, func(), error)
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func NewPublisher(cfg config.RabbitMQ) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{
		url:     cfg.URL,
		prefix:  cfg.QueuePrefix,
		timeout: timeout,
		dial: func(url string) (channel, func(), error) {
			return dialAMQP(url, timeout)
		},
	}
}

// Timeout bounds the dial and the publish, each.
func (p *Publisher) Timeout() time.Duration {
	return p.timeout
}

func (p *Publisher) Notify(ctx context.Context, event booking.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", event.Type, err)
	}

	ch, closeFn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: connect: %w", err)
	}
	defer closeFn()

	queue := p.Queue(event.Type)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare %s: %w", queue, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.UnixMilli(event.OccurredAt).UTC(),
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", queue, err)
	}
	return nil
}

// Queue is the routing key an event type is published under.
func (p *Publisher) Queue(t booking.EventType) string {
	return p.prefix + string(t)
}

func dialAMQP(url string, timeout time.Duration) (channel, func(), error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}
