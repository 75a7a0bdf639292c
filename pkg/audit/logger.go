package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/contextkeys"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes buffered events and releases resources
	Close() error
}

// NewEvent creates an event stamped with the current time and the request,
// user and tenant identifiers carried by ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		UserID:    contextkeys.GetUserID(ctx),
		TenantID:  contextkeys.GetTenantID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

// Emit logs event and reports sink failures to the context logger. Audit
// failures never change the outcome of the operation being audited.
func Emit(ctx context.Context, logger Logger, event *Event) {
	if logger == nil || event == nil {
		return
	}
	if err := logger.Log(ctx, event); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("Failed to record audit event")
	}
}

// NopLogger discards every event
type NopLogger struct{}

// Log discards the event
func (NopLogger) Log(context.Context, *Event) error { return nil }

// Close is a no-op
func (NopLogger) Close() error { return nil }

// LogSink writes audit events to the structured application log
type LogSink struct {
	logger *observability.Logger
}

// NewLogSink creates a sink over the application logger
func NewLogSink(logger *observability.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Log writes the event as one structured log line
func (s *LogSink) Log(ctx context.Context, event *Event) error {
	fields := map[string]interface{}{
		"audit":      true,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.TenantID != "" {
		fields["tenant_id"] = event.TenantID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	s.logger.WithFields(fields).Info(event.Message)
	return nil
}

// Close is a no-op
func (s *LogSink) Close() error { return nil }
