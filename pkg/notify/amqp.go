package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event routing keys published on the marketplace exchange.
const (
	EventBookListed         = "book.listed"
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// Publisher emits marketplace events for downstream consumers (mail senders,
// analytics). Delivery is fire-and-forget: a publish failure is logged, never
// surfaced to the request that triggered it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any)
	Close() error
}

// AMQPPublisher implements Publisher on a RabbitMQ topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
}

// NewAMQPPublisher connects to RabbitMQ and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	p.channel = channel
	return nil
}

// Publish marshals payload and emits it under routingKey. Failed publishes
// trigger one reconnect attempt before giving up.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("event payload marshal failed", "routing_key", routingKey, "err", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.publishLocked(ctx, routingKey, body); err != nil {
		if err := p.connect(); err != nil {
			slog.Warn("event publish failed", "routing_key", routingKey, "err", err)
			return
		}
		if err := p.publishLocked(ctx, routingKey, body); err != nil {
			slog.Warn("event publish failed", "routing_key", routingKey, "err", err)
		}
	}
}

func (p *AMQPPublisher) publishLocked(ctx context.Context, routingKey string, body []byte) error {
	if p.channel == nil {
		return fmt.Errorf("amqp channel not open")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
}

// Close shuts the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) {}
func (NopPublisher) Close() error                         { return nil }
