// Package events publishes post lifecycle events to RabbitMQ for
// downstream consumers (moderation dashboards, archival jobs).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

type Config struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (c *Config) withDefaults() {
	if c.Exchange == "" {
		c.Exchange = "sticky.events"
	}
	if c.RoutingKey == "" {
		c.RoutingKey = "sticky"
	}
	if c.QueueName == "" {
		c.QueueName = "sticky-events"
	}
}

// RabbitMQ implements kit.EventSink over a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	log        logx.Logger
}

var _ kit.EventSink = (*RabbitMQ)(nil)

func NewRabbitMQ(cfg Config, log logx.Logger) (*RabbitMQ, error) {
	cfg.withDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	log.Info("connected to rabbitmq",
		logx.String("exchange", cfg.Exchange),
		logx.String("queue", cfg.QueueName),
		logx.String("routing_key", cfg.RoutingKey),
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, e kit.Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	r.log.Debug("published event",
		logx.String("type", string(e.Type)),
		logx.String("post_id", e.PostID),
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
