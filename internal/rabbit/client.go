package rabbit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// prefetch bounds unacked deliveries held by one consumer.
const prefetch = 16

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	log      *zerolog.Logger
	exchange string
	queue    string
	mu       sync.Mutex
}

// Publisher is what request handlers need from the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message []byte) error
}

type Consumer interface {
	Consume(handler func(routingKey string, body []byte) error) error
}

// NewRabbit declares a durable topic exchange and a queue bound to every key
// in bindings.
func NewRabbit(url, exchange, queue string, bindings []string, log *zerolog.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	client := &Client{
		conn:     conn,
		channel:  ch,
		log:      log,
		exchange: exchange,
		queue:    queue,
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range bindings {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	log.Info().Msgf("RabbitMQ initialized (exchange=%s, queue=%s)", exchange, queue)
	return client, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info().Msg("RabbitMQ connection closed")
}

func (c *Client) Publish(ctx context.Context, routingKey string, message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Type:         routingKey,
			Body:         message,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish message to RabbitMQ")
		return err
	}
	c.log.Debug().Msgf("Message published to exchange=%s key=%s", c.exchange, routingKey)
	return nil
}

// Consume acks messages the handler accepts and requeues the rest once;
// a redelivered message that fails again is dropped.
func (c *Client) Consume(handler func(routingKey string, body []byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to start consuming messages")
		return err
	}

	go func() {
		for d := range msgs {
			if err := handler(d.RoutingKey, d.Body); err != nil {
				c.log.Warn().Err(err).
					Str("message_id", d.MessageId).
					Bool("redelivered", d.Redelivered).
					Msg("failed to process message")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	c.log.Info().Msgf("Started consuming from queue %s", c.queue)
	return nil
}

// Nop drops every message; used when the bus is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
