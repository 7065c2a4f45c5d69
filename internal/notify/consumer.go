package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/models"
)

// HandlerFunc processes one delivery job.
type HandlerFunc func(ctx context.Context, job models.DeliveryJob) error

// GiveUpFunc closes the bookkeeping of a broadcast whose delivery is
// abandoned.
type GiveUpFunc func(ctx context.Context, broadcastID uuid.UUID, reason string) error

// Consumer reads delivery jobs from QueueBroadcastCreated.
type Consumer struct {
	url      string
	handle   HandlerFunc
	giveUp   GiveUpFunc
	prefetch int
	logger   *zap.Logger
}

// NewConsumer creates a consumer. giveUp runs when a redelivered job fails
// again, before the message is dropped; it may be nil.
func NewConsumer(url string, handle HandlerFunc, giveUp GiveUpFunc, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, handle: handle, giveUp: giveUp, prefetch: 10, logger: logger}
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("broker dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := declare(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(QueueBroadcastCreated, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

// deliver acks handled messages, requeues failed ones once and drops
// malformed or twice-failed ones. A twice-failed job is given up first so
// its broadcast does not stay pending.
func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	var job models.DeliveryJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.logger.Error("malformed delivery message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := c.handle(ctx, job); err != nil {
		c.logger.Error("delivery failed",
			zap.String("broadcast_id", job.BroadcastID.String()),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		if d.Redelivered && c.giveUp != nil {
			if gErr := c.giveUp(ctx, job.BroadcastID, err.Error()); gErr != nil {
				c.logger.Error("give up delivery failed",
					zap.String("broadcast_id", job.BroadcastID.String()),
					zap.Error(gErr),
				)
			}
		}
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}
