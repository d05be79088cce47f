package audit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingLogger always errors, for fan-out error handling tests
type failingLogger struct{}

func (l *failingLogger) Log(ctx context.Context, event *Event) error {
	return errors.New("sink unavailable")
}

func (l *failingLogger) LogDecision(ctx context.Context, resource, operation string, businessID *uuid.UUID, allowed bool, reason string) error {
	return errors.New("sink unavailable")
}

func (l *failingLogger) LogMembershipChange(ctx context.Context, eventType EventType, businessID, targetUserID uuid.UUID, changes *ChangeDetails, message string) error {
	return errors.New("sink unavailable")
}

func (l *failingLogger) LogBusinessChange(ctx context.Context, eventType EventType, businessID uuid.UUID, changes *ChangeDetails, message string) error {
	return errors.New("sink unavailable")
}

func (l *failingLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	return errors.New("sink unavailable")
}

func (l *failingLogger) Close() error { return nil }

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	multi := NewMultiLogger(a, b)

	businessID := uuid.New()
	err := multi.LogDecision(context.Background(), "invoices", "update", &businessID, true, "active member")
	require.NoError(t, err)

	assert.Len(t, a.recorded(), 1)
	assert.Len(t, b.recorded(), 1)
}

func TestMultiLoggerContinuesPastFailures(t *testing.T) {
	healthy := &recordingLogger{}
	multi := NewMultiLogger(&failingLogger{}, healthy)

	event := &Event{EventType: EventTypeAccessCheck, Status: EventStatusSuccess}
	err := multi.Log(context.Background(), event)

	assert.Error(t, err)
	assert.Len(t, healthy.recorded(), 1)
}
