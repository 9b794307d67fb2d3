package broker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-pipeline/internal/models"
	"chat-pipeline/internal/observability"
)

// Publisher appends messages to the durable log. PublishMessage reports
// success as a bool and never returns an error: a false tells the caller
// to fall back to a synchronous direct write.
type Publisher interface {
	PublishMessage(ctx context.Context, msg models.ChatMessage) bool
	PublishEvent(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher builds an AMQP publisher or a noop publisher when AMQP is
// disabled or unreachable.
func NewPublisher(amqpURL, exchange string, timeout time.Duration) Publisher {
	if amqpURL == "" {
		log.Printf("broker disabled, using noop publisher: empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Printf("broker disabled, using noop publisher: %v", err)
		return noopPublisher{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("broker disabled, using noop publisher: %v", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Printf("broker disabled, using noop publisher: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	log.Printf("broker connected exchange=%s", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, timeout: timeout}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	timeout  time.Duration
}

// PublishMessage appends the message to the log, routed by room so one
// room's messages stay ordered relative to each other.
func (p *amqpPublisher) PublishMessage(ctx context.Context, msg models.ChatMessage) bool {
	envelope := models.NewMessageEnvelope(msg)
	body, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("broker marshal failed id=%s: %v", msg.ID, err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, "room."+msg.RoomKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		log.Printf("broker publish failed id=%s: %v", msg.ID, err)
		observability.IncPublishError()
		return false
	}
	observability.IncPublished()
	return true
}

// PublishEvent publishes an arbitrary JSON event, used for audit and ops
// events sharing the exchange with the message stream.
func (p *amqpPublisher) PublishEvent(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		log.Printf("broker event publish failed routing_key=%s: %v", routingKey, err)
		observability.IncPublishError()
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
}

// PublishMessage reports failure so callers take the direct-write path.
func (n noopPublisher) PublishMessage(ctx context.Context, msg models.ChatMessage) bool {
	log.Printf("broker noop publish id=%s room=%s reason=%s", msg.ID, msg.RoomKey(), n.reason)
	return false
}

func (noopPublisher) PublishEvent(ctx context.Context, routingKey string, event any) error {
	log.Printf("broker noop event publish routing_key=%s", routingKey)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher, *noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}
