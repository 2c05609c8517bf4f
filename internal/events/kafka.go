package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes record events to one topic.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	now     func() time.Time
}

// NewKafkaPublisher creates a synchronous writer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return newKafkaPublisher(writer, topic), nil
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		topic:   topic,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// PublishRecord emits a record.appended event keyed by sector, so one sector's events stay ordered.
func (p *KafkaPublisher) PublishRecord(ctx context.Context, rec attendance.Record) error {
	payload, err := json.Marshal(newRecordAppended(rec, p.now()))
	if err != nil {
		return fmt.Errorf("encode record event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(rec.Sector),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeRecordAppended)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
