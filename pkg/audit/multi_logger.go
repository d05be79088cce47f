package audit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// MultiLogger fans out audit events to several sinks, typically the
// database plus a file for offline shipping. Every sink receives every
// event; errors are collected, not short-circuited.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to all given sinks
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) each(fn func(Logger) error) error {
	var errs []error
	for _, l := range m.loggers {
		if err := fn(l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	return m.each(func(l Logger) error { return l.Log(ctx, event) })
}

func (m *MultiLogger) LogDecision(ctx context.Context, resource, operation string, businessID *uuid.UUID, allowed bool, reason string) error {
	return m.each(func(l Logger) error {
		return l.LogDecision(ctx, resource, operation, businessID, allowed, reason)
	})
}

func (m *MultiLogger) LogMembershipChange(ctx context.Context, eventType EventType, businessID, targetUserID uuid.UUID, changes *ChangeDetails, message string) error {
	return m.each(func(l Logger) error {
		return l.LogMembershipChange(ctx, eventType, businessID, targetUserID, changes, message)
	})
}

func (m *MultiLogger) LogBusinessChange(ctx context.Context, eventType EventType, businessID uuid.UUID, changes *ChangeDetails, message string) error {
	return m.each(func(l Logger) error {
		return l.LogBusinessChange(ctx, eventType, businessID, changes, message)
	})
}

func (m *MultiLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	return m.each(func(l Logger) error {
		return l.LogHTTPRequest(ctx, r, statusCode, duration, err)
	})
}

func (m *MultiLogger) Close() error {
	return m.each(func(l Logger) error { return l.Close() })
}
