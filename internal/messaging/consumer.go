package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one inbound record.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  MessageReader
	topic   string
	logger  *slog.Logger
	handler MessageHandler
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return NewConsumerWithReader(reader, topic, logger, handler)
}

func NewConsumerWithReader(reader MessageReader, topic string, logger *slog.Logger, handler MessageHandler) *Consumer {
	return &Consumer{reader: reader, topic: topic, logger: logger, handler: handler}
}

// Run reads until ctx is cancelled. Handler failures are logged and the
// message is skipped.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("starting kafka consumer", "topic", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("failed to close kafka reader", "error", err, "topic", c.topic)
		}
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("stopping kafka consumer", "topic", c.topic)
				return nil
			}
			c.logger.Error("failed to read kafka message", "error", err, "topic", c.topic)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("failed to handle kafka message", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// LoggingHandler logs every record it receives.
func LoggingHandler(logger *slog.Logger) MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		logger.Info("kafka message received",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value", string(msg.Value))
		return nil
	}
}
