package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger persists audit events to the audit_events table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger.
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Log inserts the event.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	var tenantID interface{}
	if event.TenantID != nil {
		tenantID = *event.TenantID
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, status, actor, tenant_id, capability, message, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`, event.EventType, event.Status, event.Actor, tenantID, event.Capability, event.Message, metadata, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the caller owns the database handle.
func (l *DBLogger) Close() error { return nil }
