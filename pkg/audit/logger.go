package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records one audit event. Implementations must not fail the
	// calling operation; audit sink trouble is reported on the error
	// return and handled by the caller's policy.
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// OverrideSet builds the event for a successful override mutation.
func OverrideSet(actor string, tenantID uuid.UUID, capability string, enabled bool, reason string) *Event {
	return &Event{
		Timestamp:  time.Now().UTC(),
		EventType:  EventTypeOverrideSet,
		Status:     EventStatusSuccess,
		Actor:      actor,
		TenantID:   &tenantID,
		Capability: capability,
		Metadata: map[string]interface{}{
			"enabled": enabled,
			"reason":  reason,
		},
	}
}

// OverrideRemoved builds the event for a successful override removal.
func OverrideRemoved(actor string, tenantID uuid.UUID, capability string) *Event {
	return &Event{
		Timestamp:  time.Now().UTC(),
		EventType:  EventTypeOverrideRemoved,
		Status:     EventStatusSuccess,
		Actor:      actor,
		TenantID:   &tenantID,
		Capability: capability,
	}
}

// AccessDenied builds the event for a rejected admin request.
func AccessDenied(actor, message string) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: EventTypeAccessDenied,
		Status:    EventStatusDenied,
		Actor:     actor,
		Message:   message,
	}
}

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// LogrusLogger emits audit events as structured log lines on a dedicated
// logrus logger, kept separate from application logging so the audit stream
// can be shipped independently.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates a logrus-backed audit logger.
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &LogrusLogger{logger: logger}
}

// Log writes the event as one structured line.
func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	if event.TenantID != nil {
		fields["tenant_id"] = event.TenantID.String()
	}
	if event.Capability != "" {
		fields["capability"] = event.Capability
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

// Close flushes nothing; logrus writes synchronously.
func (l *LogrusLogger) Close() error { return nil }

// MultiLogger fans events out to several sinks. The first sink error is
// returned; remaining sinks are still attempted.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a fan-out audit logger.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiLogger) Close() error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
