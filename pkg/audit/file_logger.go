package audit

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileLogger appends audit events to a file as newline-delimited JSON.
// Useful for shipping events to external log pipelines.
type FileLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileLogger creates a file-backed audit logger, appending to path
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileLogger{file: file}, nil
}

func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

func (l *FileLogger) LogDecision(ctx context.Context, resource, operation string, businessID *uuid.UUID, allowed bool, reason string) error {
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

func (l *FileLogger) LogMembershipChange(ctx context.Context, eventType EventType, businessID, targetUserID uuid.UUID, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, EventStatusSuccess)
	event.BusinessID = &businessID
	event.ResourceID = targetUserID.String()
	event.Resource = "business_users"
	event.Changes = changes
	event.Message = message

	return l.Log(ctx, event)
}

func (l *FileLogger) LogBusinessChange(ctx context.Context, eventType EventType, businessID uuid.UUID, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, EventStatusSuccess)
	event.BusinessID = &businessID
	event.Resource = "businesses"
	event.ResourceID = businessID.String()
	event.Changes = changes
	event.Message = message

	return l.Log(ctx, event)
}

func (l *FileLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
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

// Close closes the underlying file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
