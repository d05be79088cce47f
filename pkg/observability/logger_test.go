package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/contextkeys"
	"github.com/ledgerline/tenantguard/pkg/identity"
)

func parseEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	entry := map[string]interface{}{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}
	return entry
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := parseEntry(t, &buf)
		if entry["level"] != "INFO" {
			t.Errorf("Expected level INFO, got %v", entry["level"])
		}
		if entry["msg"] != "info message" {
			t.Errorf("Expected message 'info message', got %v", entry["msg"])
		}
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if buf.Len() == 0 {
			t.Error("Error message should be logged at Info level")
		}
	})
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("resource", "invoices").Info("message")

	entry := parseEntry(t, &buf)
	if entry["resource"] != "invoices" {
		t.Errorf("Expected field 'resource' to be 'invoices', got %v", entry["resource"])
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"resource":  "invoices",
		"operation": "delete",
	}).Info("denied")

	entry := parseEntry(t, &buf)
	if entry["resource"] != "invoices" || entry["operation"] != "delete" {
		t.Errorf("unexpected fields: %v", entry)
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	userID := uuid.New()
	ctx := context.Background()
	ctx = WithLogger(ctx, logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")
	ctx = identity.WithPrincipal(ctx, &identity.Principal{UserID: userID})

	FromContext(ctx).Info("test message")

	entry := parseEntry(t, &buf)
	if entry["request_id"] != "req-123" {
		t.Errorf("Expected request_id 'req-123', got %v", entry["request_id"])
	}
	if entry["user_id"] != userID.String() {
		t.Errorf("Expected user_id %s, got %v", userID, entry["user_id"])
	}
}

func TestLoggerFromContextAnonymous(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))

	FromContext(ctx).Info("anonymous")

	entry := parseEntry(t, &buf)
	if _, present := entry["user_id"]; present {
		t.Error("anonymous context should not carry user_id")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel.String() = %v, want %v", got, tt.want)
		}
	}
}
