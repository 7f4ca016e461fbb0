package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	// Override mutation events
	EventTypeOverrideSet     EventType = "tools.override_set"
	EventTypeOverrideRemoved EventType = "tools.override_removed"

	// Authorization events
	EventTypeAccessDenied EventType = "authz.access_denied"
	EventTypeAuthFailed   EventType = "auth.credential_invalid"

	// Configuration events
	EventTypeCatalogSeeded EventType = "config.catalog_seeded"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor is the admin principal performing the action.
	Actor string `json:"actor,omitempty"`

	// Target
	TenantID   *uuid.UUID `json:"tenant_id,omitempty"`
	Capability string     `json:"capability,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
