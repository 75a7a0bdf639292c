package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue audit events are published to when none is configured
const DefaultQueue = "tenantgate.audit"

// Publisher is the subset of *amqp.Channel used by AMQPLogger
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPLogger publishes audit events as persistent JSON messages so that
// downstream consumers can archive or alert on them.
type AMQPLogger struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel Publisher
	queue   string
}

// DialAMQPLogger connects to the broker at url and declares a durable queue
func DialAMQPLogger(url, queue string) (*AMQPLogger, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPLogger{conn: conn, channel: ch, queue: queue}, nil
}

// NewAMQPLogger wraps an already-open channel. The queue is assumed to exist.
func NewAMQPLogger(channel Publisher, queue string) *AMQPLogger {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPLogger{channel: channel, queue: queue}
}

// Log publishes the event to the default exchange with the queue name as
// routing key
func (l *AMQPLogger) Log(ctx context.Context, event *Event) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event.EventType),
		MessageId:    event.RequestID,
		Body:         body,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.channel.PublishWithContext(ctx, "", l.queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Close closes the channel and, when owned, the connection
func (l *AMQPLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.channel != nil {
		if err := l.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if l.conn != nil {
		if err := l.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
