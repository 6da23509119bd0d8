package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Run statuses published while an archive is analyzed.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Update is one run lifecycle event.
type Update struct {
	RunID     string    `json:"run_id"`
	Archive   string    `json:"archive"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// RoutingKey is the topic key subscribers bind to for a run.
func RoutingKey(runID string) string {
	return fmt.Sprintf("analysis.%s", runID)
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes run updates to a topic exchange.
type AMQPPublisher struct {
	exchange string
	conn     *amqp.Connection
	open     func() (channel, error)
}

// NewAMQPPublisher dials url and declares the topic exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		exchange: exchange,
		conn:     conn,
		open: func() (channel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
	}, nil
}

// Notify publishes u. A channel is opened per message; updates are rare.
func (p *AMQPPublisher) Notify(ctx context.Context, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	return ch.Publish(p.exchange, RoutingKey(u.RunID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    u.Timestamp,
		Body:         body,
	})
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
