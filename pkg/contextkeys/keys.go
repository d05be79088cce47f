// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the library must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/ledgerline/tenantguard/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.PrincipalKey, principal)
//   principal := ctx.Value(contextkeys.PrincipalKey).(*identity.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *identity.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: identity.CurrentUserID, policy.Enforcer, tenant.Resolver
	// Type: *identity.Principal
	PrincipalKey Key = "principal"

	// BusinessKey contains *tenant.Business
	// Set by: middleware.BusinessContextMiddleware (pkg/middleware/business.go)
	// Required by: tenant.Resolver.CurrentBusinessID, role checks pinned to one tenant
	// Type: *tenant.Business
	BusinessKey Key = "business"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: HTTP middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: Audit middleware (pkg/audit/middleware.go)
	// Used by: Code paths that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"

	// RequestStartTimeKey contains request start timestamp
	// Set by: Audit middleware
	// Used by: Duration calculation for audit records
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithBusiness adds the resolved business to the context
func WithBusiness(ctx context.Context, business interface{}) context.Context {
	return context.WithValue(ctx, BusinessKey, business)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
