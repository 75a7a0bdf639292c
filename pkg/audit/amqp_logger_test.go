package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	exchange string
	key      string
	msgs     []amqp.Publishing
	err      error
	closed   bool
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange = exchange
	f.key = key
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestAMQPLogger_Log(t *testing.T) {
	pub := &fakePublisher{}
	logger := NewAMQPLogger(pub, "")

	event := &Event{
		EventType: EventTypeActivationCodeRedeem,
		Status:    EventStatusSuccess,
		TenantID:  "tenant-1",
		RequestID: "req-1",
	}
	require.NoError(t, logger.Log(context.Background(), event))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "", pub.exchange)
	assert.Equal(t, DefaultQueue, pub.key)

	msg := pub.msgs[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "subscription.activation_code.redeem", msg.Type)
	assert.Equal(t, "req-1", msg.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "tenant-1", decoded.TenantID)
}

func TestAMQPLogger_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	logger := NewAMQPLogger(pub, "audit.custom")

	err := logger.Log(context.Background(), &Event{EventType: EventTypeAuthLogin})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestAMQPLogger_Close(t *testing.T) {
	pub := &fakePublisher{}
	logger := NewAMQPLogger(pub, "audit.custom")

	require.NoError(t, logger.Close())
	assert.True(t, pub.closed)
}
