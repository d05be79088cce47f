package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAccessCheck  EventType = "authz.access_check"
	EventTypeAccessDenied EventType = "authz.access_denied"

	// Membership events
	EventTypeMemberAdd          EventType = "membership.add"
	EventTypeMemberRemove       EventType = "membership.remove"
	EventTypeMemberRoleChange   EventType = "membership.role_change"
	EventTypeMemberStatusChange EventType = "membership.status_change"

	// Invitation events
	EventTypeInvitationCreate EventType = "invitation.create"
	EventTypeInvitationAccept EventType = "invitation.accept"
	EventTypeInvitationRevoke EventType = "invitation.revoke"

	// Business lifecycle events
	EventTypeBusinessCreate EventType = "business.create"
	EventTypeBusinessUpdate EventType = "business.update"
	EventTypeBusinessDelete EventType = "business.delete"

	// Policy administration events
	EventTypePolicyRegister EventType = "policy.register"
	EventTypePolicyDrop     EventType = "policy.drop"
	EventTypePolicyReload   EventType = "policy.reload"

	// HTTP request events (for middleware)
	EventTypeHTTPRequest EventType = "http.request"
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
	// Core fields
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	BusinessID *uuid.UUID `json:"business_id,omitempty"`

	// Resource information
	Resource   string `json:"resource,omitempty"`
	Operation  string `json:"operation,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID     *uuid.UUID
	BusinessID *uuid.UUID

	EventTypes []EventType
	Status     *EventStatus

	Resource   string
	ResourceID string

	Limit  int
	Offset int
}
