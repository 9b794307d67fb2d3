package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/observability"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/repositories"
)

// Consumer reads the log in order and fans each message out to the room
// cache and the batch-write queue. It never re-broadcasts to sockets:
// that already happened optimistically at submit time.
type Consumer struct {
	conn         *amqp.Connection
	ch           *amqp.Channel
	queue        string
	store        cache.Store
	messages     repositories.MessageRepository
	state        *pipeline.State
	maxBodyBytes int
}

// NewConsumer declares the deployment queue, binds it to the message
// exchange and returns a consumer ready to run. One queue with one
// logical consumer keeps per-room publish order intact.
func NewConsumer(amqpURL, exchange, deployment string, store cache.Store, messages repositories.MessageRepository, state *pipeline.State, maxBodyBytes int) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
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

	queue := "chat-pipeline." + deployment
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue, "room.*", exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	if err := ch.Qos(32, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		conn:         conn,
		ch:           ch,
		queue:        queue,
		store:        store,
		messages:     messages,
		state:        state,
		maxBodyBytes: maxBodyBytes,
	}, nil
}

// Run consumes deliveries until ctx is done. Deliveries are acked after
// processing; a crash before ack redelivers, and both side effects stay
// safe under duplicates (cache push is bounded, durable write skips
// duplicate ids).
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	log.Printf("consumer started queue=%s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.state.SetBrokerUp(false)
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery performs the two fanout steps for one record. Errors are
// logged and the delivery acked anyway: retrying a poison message forever
// would stall every room behind it.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if err := d.Ack(false); err != nil {
			log.Printf("consumer ack failed: %v", err)
		}
	}()

	var envelope models.Envelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		log.Printf("consumer dropped malformed delivery: %v", err)
		observability.IncConsumeError()
		return
	}
	if err := envelope.Validate(c.maxBodyBytes); err != nil {
		log.Printf("consumer dropped invalid envelope id=%s: %v", envelope.Message.ID, err)
		observability.IncConsumeError()
		return
	}

	msg := envelope.Message
	cacheOK := true

	if err := c.store.PushRoomMessage(ctx, msg); err != nil {
		log.Printf("cache seed failed id=%s: %v", msg.ID, err)
		cacheOK = false
	}
	if cacheOK {
		if err := c.store.EnqueuePending(ctx, msg); err != nil {
			log.Printf("batch enqueue failed id=%s: %v", msg.ID, err)
			cacheOK = false
		}
	}
	c.state.SetCacheUp(cacheOK)

	if !cacheOK {
		// Accelerator is down: write through directly so the message is
		// not lost. Duplicate-skipping insert keeps replays harmless.
		if _, err := c.messages.CreateMany(ctx, []models.ChatMessage{msg}, true); err != nil {
			log.Printf("direct write fallback failed id=%s: %v", msg.ID, err)
			observability.IncConsumeError()
			return
		}
		observability.IncDirectWrite()
	}

	observability.IncConsumed()
}

// Close tears down the AMQP channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
