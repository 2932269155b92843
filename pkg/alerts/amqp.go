package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpPublishTimeout = 5 * time.Second

// AMQPChannel is the part of *amqp091.Channel the notifier uses.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes alerts to a durable topic exchange. The alert topic is
// the routing key, so consumers bind queues per topic or with wildcards.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  AMQPChannel
	exchange string
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	n := NewAMQPNotifierWithChannel(ch, exchange)
	n.conn = conn
	return n, nil
}

// NewAMQPNotifierWithChannel publishes on an already opened channel.
func NewAMQPNotifierWithChannel(ch AMQPChannel, exchange string) *AMQPNotifier {
	return &AMQPNotifier{channel: ch, exchange: exchange}
}

func (a *AMQPNotifier) Name() string { return "amqp" }

func (a *AMQPNotifier) Publish(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, amqpPublishTimeout)
	defer cancel()

	err = a.channel.PublishWithContext(ctx,
		a.exchange,  // exchange
		alert.Topic, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         alert.Subject,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to exchange %q: %w", a.exchange, err)
	}
	return nil
}

func (a *AMQPNotifier) Close() error {
	if err := a.channel.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
