package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}

	return logger, nil
}

// ensureTable creates the audit_events table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id UUID,
		business_id UUID,
		resource VARCHAR(100),
		operation VARCHAR(20),
		resource_id VARCHAR(255),
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(100),
		method VARCHAR(10),
		path TEXT,
		status_code INTEGER,
		message TEXT,
		error_message TEXT,
		metadata JSONB,
		changes JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_business_id ON audit_events(business_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource, resource_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_status ON audit_events(status);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON, changesJSON []byte
	var err error

	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	if event.Changes != nil {
		changesJSON, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status,
			user_id, business_id,
			resource, operation, resource_id,
			ip_address, user_agent, request_id,
			method, path, status_code,
			message, error_message, metadata, changes
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18
		) RETURNING id
	`

	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.UserID, event.BusinessID,
		event.Resource, event.Operation, event.ResourceID,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Method, event.Path, event.StatusCode,
		event.Message, event.ErrorMessage, metadataJSON, changesJSON,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// LogDecision logs the outcome of one authorization check
func (l *DBLogger) LogDecision(ctx context.Context, resource, operation string, businessID *uuid.UUID, allowed bool, reason string) error {
	eventType := EventTypeAccessCheck
	status := EventStatusSuccess
	if !allowed {
		eventType = EventTypeAccessDenied
		status = EventStatusDenied
	}

	event := buildBaseEvent(ctx, nil, eventType, status)
	event.Resource = resource
	event.Operation = operation
	event.BusinessID = businessID
	event.Message = reason

	return l.Log(ctx, event)
}

// LogMembershipChange logs a membership mutation within a business
func (l *DBLogger) LogMembershipChange(ctx context.Context, eventType EventType, businessID, targetUserID uuid.UUID, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, EventStatusSuccess)
	event.BusinessID = &businessID
	event.ResourceID = targetUserID.String()
	event.Resource = "business_users"
	event.Changes = changes
	event.Message = message

	return l.Log(ctx, event)
}

// LogBusinessChange logs a business lifecycle mutation
func (l *DBLogger) LogBusinessChange(ctx context.Context, eventType EventType, businessID uuid.UUID, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, EventStatusSuccess)
	event.BusinessID = &businessID
	event.Resource = "businesses"
	event.ResourceID = businessID.String()
	event.Changes = changes
	event.Message = message

	return l.Log(ctx, event)
}

// LogHTTPRequest logs an HTTP request
func (l *DBLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	status := EventStatusSuccess
	if statusCode >= 400 {
		status = EventStatusFailure
	}
	if statusCode == http.StatusForbidden {
		status = EventStatusDenied
	}

	event := buildBaseEvent(ctx, r, EventTypeHTTPRequest, status)
	event.StatusCode = statusCode
	event.Metadata["duration_ms"] = duration.Milliseconds()

	if err != nil {
		event.ErrorMessage = err.Error()
	}

	return l.Log(ctx, event)
}

// Close closes the logger
func (l *DBLogger) Close() error {
	return nil
}

// Search searches audit events based on filters
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT
			id, timestamp, event_type, status,
			user_id, business_id,
			resource, operation, resource_id,
			ip_address, user_agent, request_id,
			method, path, status_code,
			message, error_message, metadata, changes
		FROM audit_events
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, *filter.UserID)
		argCount++
	}

	if filter.BusinessID != nil {
		query += fmt.Sprintf(" AND business_id = $%d", argCount)
		args = append(args, *filter.BusinessID)
		argCount++
	}

	if len(filter.EventTypes) > 0 {
		query += " AND event_type IN ("
		for i, et := range filter.EventTypes {
			if i > 0 {
				query += ", "
			}
			query += fmt.Sprintf("$%d", argCount)
			args = append(args, et)
			argCount++
		}
		query += ")"
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	if filter.Resource != "" {
		query += fmt.Sprintf(" AND resource = $%d", argCount)
		args = append(args, filter.Resource)
		argCount++
	}

	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, filter.ResourceID)
		argCount++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	event := &Event{}
	var userID, businessID sql.NullString
	var resource, operation, resourceID sql.NullString
	var ipAddress, userAgent, requestID, method, path sql.NullString
	var statusCode sql.NullInt64
	var message, errorMessage sql.NullString
	var metadataJSON, changesJSON []byte

	err := rows.Scan(
		&event.ID, &event.Timestamp, &event.EventType, &event.Status,
		&userID, &businessID,
		&resource, &operation, &resourceID,
		&ipAddress, &userAgent, &requestID,
		&method, &path, &statusCode,
		&message, &errorMessage, &metadataJSON, &changesJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	if userID.Valid {
		if id, err := uuid.Parse(userID.String); err == nil {
			event.UserID = &id
		}
	}
	if businessID.Valid {
		if id, err := uuid.Parse(businessID.String); err == nil {
			event.BusinessID = &id
		}
	}

	event.Resource = resource.String
	event.Operation = operation.String
	event.ResourceID = resourceID.String
	event.IPAddress = ipAddress.String
	event.UserAgent = userAgent.String
	event.RequestID = requestID.String
	event.Method = method.String
	event.Path = path.String
	event.StatusCode = int(statusCode.Int64)
	event.Message = message.String
	event.ErrorMessage = errorMessage.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if len(changesJSON) > 0 {
		if err := json.Unmarshal(changesJSON, &event.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}

	return event, nil
}

// Cleanup removes audit events older than retentionDays
func (l *DBLogger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit events: %w", err)
	}
	return result.RowsAffected()
}
