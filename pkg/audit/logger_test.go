package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideSet(t *testing.T) {
	tenantID := uuid.New()

	event := OverrideSet("admin@example.com", tenantID, "export_dataset", true, "pilot program")
	assert.Equal(t, EventTypeOverrideSet, event.EventType)
	assert.Equal(t, EventStatusSuccess, event.Status)
	assert.Equal(t, "admin@example.com", event.Actor)
	require.NotNil(t, event.TenantID)
	assert.Equal(t, tenantID, *event.TenantID)
	assert.Equal(t, "export_dataset", event.Capability)
	assert.Equal(t, true, event.Metadata["enabled"])
	assert.Equal(t, "pilot program", event.Metadata["reason"])
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
}

func TestAccessDenied(t *testing.T) {
	event := AccessDenied("viewer@example.com", "missing permission tools:manage")
	assert.Equal(t, EventTypeAccessDenied, event.EventType)
	assert.Equal(t, EventStatusDenied, event.Status)
	assert.Nil(t, event.TenantID)
	assert.Equal(t, "missing permission tools:manage", event.Message)
}

func TestLogrusLogger_Fields(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	logger := NewLogrusLogger(base)
	tenantID := uuid.New()

	err := logger.Log(context.Background(), OverrideSet("admin@example.com", tenantID, "forecast", false, "abuse"))
	require.NoError(t, err)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, true, entry.Data["audit"])
	assert.Equal(t, EventTypeOverrideSet, entry.Data["event_type"])
	assert.Equal(t, "admin@example.com", entry.Data["actor"])
	assert.Equal(t, tenantID.String(), entry.Data["tenant_id"])
	assert.Equal(t, "forecast", entry.Data["capability"])
	assert.Equal(t, false, entry.Data["meta_enabled"])
	assert.Equal(t, "abuse", entry.Data["meta_reason"])
}

func TestLogrusLogger_DeniedLogsAtWarn(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	logger := NewLogrusLogger(base)

	require.NoError(t, logger.Log(context.Background(), AccessDenied("viewer@example.com", "nope")))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "nope", hook.LastEntry().Message)
}

func TestDBLogger_Log(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	tenantID := uuid.New()
	event := OverrideRemoved("admin@example.com", tenantID, "forecast")

	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs(EventTypeOverrideRemoved, EventStatusSuccess, "admin@example.com", tenantID, "forecast", "", []byte(nil), event.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewDBLogger(db).Log(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_InsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO audit_events`).WillReturnError(errors.New("connection refused"))

	err = NewDBLogger(db).Log(context.Background(), AccessDenied("x", "y"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert audit event")
}

type stubLogger struct {
	events []*Event
	err    error
	closed bool
}

func (s *stubLogger) Log(_ context.Context, event *Event) error {
	s.events = append(s.events, event)
	return s.err
}

func (s *stubLogger) Close() error {
	s.closed = true
	return s.err
}

func TestMultiLogger_FanOut(t *testing.T) {
	first := &stubLogger{err: errors.New("sink down")}
	second := &stubLogger{}
	multi := NewMultiLogger(first, second)

	event := AccessDenied("x", "y")
	err := multi.Log(context.Background(), event)

	// First error is reported but every sink still receives the event.
	assert.EqualError(t, err, "sink down")
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)

	require.Error(t, multi.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}
