package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/softeno/permission-template/internal"
)

// Message is the envelope written to the outbound topic.
type Message struct {
	Content string `json:"content"`
	TraceID string `json:"trace_id,omitempty"`
}

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

func NewProducer(cfg internal.KafkaConfig, logger *slog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.TxTopic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return NewProducerWithWriter(writer, cfg.TxTopic, logger)
}

func NewProducerWithWriter(writer MessageWriter, topic string, logger *slog.Logger) *Producer {
	return &Producer{writer: writer, topic: topic, logger: logger}
}

func (p *Producer) Send(ctx context.Context, key string, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "trace_id", Value: []byte(msg.TraceID)},
		},
	})
	if err != nil {
		p.logger.Error("failed to write kafka message", "error", err, "topic", p.topic, "key", key)
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}

	p.logger.Info("kafka message sent", "topic", p.topic, "key", key, "content", msg.Content)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
