package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/contextkeys"
	"github.com/ledgerline/tenantguard/pkg/identity"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogDecision logs the outcome of one authorization check
	LogDecision(ctx context.Context, resource, operation string, businessID *uuid.UUID, allowed bool, reason string) error

	// LogMembershipChange logs a membership mutation within a business
	LogMembershipChange(ctx context.Context, eventType EventType, businessID, targetUserID uuid.UUID, changes *ChangeDetails, message string) error

	// LogBusinessChange logs a business lifecycle mutation
	LogBusinessChange(ctx context.Context, eventType EventType, businessID uuid.UUID, changes *ChangeDetails, message string) error

	// LogHTTPRequest logs an HTTP request (for middleware)
	LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
// when none is set
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// WithRequestStartTime adds the request start time to the context
func WithRequestStartTime(ctx context.Context, t time.Time) context.Context {
	return contextkeys.WithRequestStartTime(ctx, t)
}

// GetRequestStartTime retrieves the request start time from context
func GetRequestStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextkeys.RequestStartTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// noOpLogger is used when no logger is configured
type noOpLogger struct{}

func (l *noOpLogger) Log(ctx context.Context, event *Event) error { return nil }

func (l *noOpLogger) LogDecision(ctx context.Context, resource, operation string, businessID *uuid.UUID, allowed bool, reason string) error {
	return nil
}

func (l *noOpLogger) LogMembershipChange(ctx context.Context, eventType EventType, businessID, targetUserID uuid.UUID, changes *ChangeDetails, message string) error {
	return nil
}

func (l *noOpLogger) LogBusinessChange(ctx context.Context, eventType EventType, businessID uuid.UUID, changes *ChangeDetails, message string) error {
	return nil
}

func (l *noOpLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	return nil
}

func (l *noOpLogger) Close() error { return nil }

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// buildBaseEvent creates a base audit event with the actor and request
// context populated from ctx
func buildBaseEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if userID := identity.CurrentUserID(ctx); userID != identity.NilUserID {
		event.UserID = &userID
	}

	if r != nil {
		event.IPAddress = getClientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
	}

	return event
}

// LogDenied logs an access denied event through the context logger
func LogDenied(ctx context.Context, resource, operation string, reason string) error {
	logger := FromContext(ctx)
	event := buildBaseEvent(ctx, nil, EventTypeAccessDenied, EventStatusDenied)
	event.Resource = resource
	event.Operation = operation
	event.Message = fmt.Sprintf("Access denied: %s", reason)
	return logger.Log(ctx, event)
}
