package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

// ResultRecorder is the ingest path shared with the webhook handler.
type ResultRecorder interface {
	RecordResult(ctx context.Context, posting *model.ResultPosting, source string) error
}

// Consumer consumes optimizer result messages from RabbitMQ. It exists for
// deployments where the optimizer cannot reach the dashboard over HTTP; the
// messages carry the same body the webhook receives.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	recorder ResultRecorder
	queue    string
	logger   *zap.Logger
	done     chan struct{}
}

// NewConsumer creates a new RabbitMQ consumer.
func NewConsumer(url, queue string, recorder ResultRecorder, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:     conn,
		channel:  channel,
		recorder: recorder,
		queue:    queue,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start starts consuming messages.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	c.logger.Info("amqp.consumer_started", zap.String("queue", c.queue))

	go c.consumeResults(ctx, msgs)
	return nil
}

func (c *Consumer) consumeResults(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("amqp.results_channel_closed")
				return
			}

			c.logger.Debug("amqp.result_received", zap.String("body", string(msg.Body)))

			var posting model.ResultPosting
			if err := json.Unmarshal(msg.Body, &posting); err != nil {
				c.logger.Error("amqp.unmarshal_failed", zap.Error(err))
				_ = msg.Nack(false, false)
				continue
			}

			if err := c.recorder.RecordResult(ctx, &posting, "queue"); err != nil {
				c.logger.Error("amqp.record_failed",
					zap.String("run_id", posting.RunID),
					zap.Error(err))
				_ = msg.Nack(false, true) // Requeue on failure
				continue
			}

			_ = msg.Ack(false)
		}
	}
}

// Close stops the consumer and releases the connection.
func (c *Consumer) Close() error {
	close(c.done)
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
