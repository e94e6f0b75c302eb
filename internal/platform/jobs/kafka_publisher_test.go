package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/services"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaOrderEventPublisherKeysByOrder(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newKafkaPublisher(writer)
	publisher.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	event := services.OrderEvent{
		ID:             "evt_2",
		Type:           services.OrderEventStatusChanged,
		OrderID:        "ord_9",
		Status:         domain.OrderStatusConfirmed,
		PreviousStatus: domain.OrderStatusPending,
	}
	require.NoError(t, publisher.PublishOrderEvent(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "ord_9", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte(services.OrderEventStatusChanged)},
		{Key: "event_id", Value: []byte("evt_2")},
	}, msg.Headers)

	var decoded services.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.OrderStatusPending, decoded.PreviousStatus)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaOrderEventPublisherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	publisher := newKafkaPublisher(&recordingWriter{err: boom})
	err := publisher.PublishOrderEvent(context.Background(), services.OrderEvent{OrderID: "ord_1"})
	require.ErrorIs(t, err, boom)
}

func TestNewKafkaOrderEventPublisherValidates(t *testing.T) {
	_, err := NewKafkaOrderEventPublisher([]string{" "}, "orders")
	require.Error(t, err)
	_, err = NewKafkaOrderEventPublisher([]string{"localhost:9092"}, "")
	require.Error(t, err)

	publisher, err := NewKafkaOrderEventPublisher([]string{"localhost:9092"}, "kalaghar.orders")
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

type funcPublisher func(context.Context, services.OrderEvent) error

func (f funcPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	return f(ctx, event)
}

func TestFanOutPublisherDeliversToAll(t *testing.T) {
	boom := errors.New("pubsub unavailable")
	var delivered []string
	fanout := NewFanOutPublisher(
		funcPublisher(func(context.Context, services.OrderEvent) error { return boom }),
		nil,
		funcPublisher(func(_ context.Context, e services.OrderEvent) error {
			delivered = append(delivered, e.ID)
			return nil
		}),
	)

	require.Equal(t, 2, fanout.Len())
	err := fanout.PublishOrderEvent(context.Background(), services.OrderEvent{ID: "evt_3"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"evt_3"}, delivered)
}
