package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher publishes persistent JSON messages to durable RabbitMQ queues
// through the default exchange.
type AMQPPublisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log *zap.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url: url,
		log: log.With(zap.String("publisher", "amqp")),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connectLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		p.conn = conn
		p.ch = nil
	}

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("rabbitmq channel open: %w", err)
		}

		for _, queue := range []string{QueueBookingConfirmed, QueueRefundRequired} {
			if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
				_ = ch.Close()
				return fmt.Errorf("rabbitmq declare %s: %w", queue, err)
			}
		}
		p.ch = ch
	}

	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		p.log.Error("Broker unavailable", zap.Error(err), zap.String("queue", queue))
		return err
	}

	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.log.Error("Failed to publish event", zap.Error(err), zap.String("queue", queue))
		return fmt.Errorf("publish %s: %w", queue, err)
	}

	return nil
}

func (p *AMQPPublisher) PublishBookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	return p.publish(ctx, QueueBookingConfirmed, evt)
}

func (p *AMQPPublisher) PublishRefundRequired(ctx context.Context, evt RefundRequired) error {
	return p.publish(ctx, QueueRefundRequired, evt)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}
