package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes envelopes to a Kafka topic keyed by event type
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter creates a writer for the topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher creates a publisher on top of a writer
func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Name identifies the sink in logs
func (p *KafkaPublisher) Name() string {
	return "kafka"
}

// Send writes the envelope as one message
func (p *KafkaPublisher) Send(ctx context.Context, envelope *Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(envelope.Type),
		Value: data,
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "message-id", Value: []byte(envelope.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}
