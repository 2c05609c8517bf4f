package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
)

type stubWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishRecordWritesEvent(t *testing.T) {
	writer := &stubWriter{}
	pub := newKafkaPublisher(writer, DefaultTopic)
	occurred := time.Date(2025, time.June, 2, 10, 30, 0, 0, time.UTC)
	pub.now = func() time.Time { return occurred }

	rec := attendance.Record{BadgeID: "4821", Sector: "Cabide", Tier: "Menor que 120%", Timestamp: "2025-06-02 07:30:00", LeaderName: "Ana"}
	require.NoError(t, pub.PublishRecord(context.Background(), rec))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	require.Equal(t, []byte("Cabide"), msg.Key)
	require.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte(TypeRecordAppended)}}, msg.Headers)

	var event RecordAppended
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	require.Equal(t, RecordAppended{
		BadgeID:    "4821",
		Sector:     "Cabide",
		Tier:       "Menor que 120%",
		LeaderName: "Ana",
		Timestamp:  "2025-06-02 07:30:00",
		OccurredAt: occurred,
		Version:    payloadVersion,
	}, event)
}

func TestPublishRecordWrapsWriterError(t *testing.T) {
	writer := &stubWriter{err: errors.New("leader not available")}
	pub := newKafkaPublisher(writer, "custom.topic")

	err := pub.PublishRecord(context.Background(), attendance.Record{BadgeID: "1"})
	require.ErrorIs(t, err, writer.err)
	require.Contains(t, err.Error(), "custom.topic")
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "")
	require.Error(t, err)

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	require.Equal(t, DefaultTopic, pub.topic)
	require.NoError(t, pub.Close())
}

func TestClose(t *testing.T) {
	writer := &stubWriter{}
	require.NoError(t, newKafkaPublisher(writer, DefaultTopic).Close())
	require.True(t, writer.closed)
}
