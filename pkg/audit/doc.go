// Package audit records authorization decisions and tenant mutations
// for security review and compliance.
//
// # Overview
//
// Every denied access check, membership mutation, invitation lifecycle
// event, business lifecycle event, and policy change produces an Event.
// Events carry the acting user, the business they concern, and request
// context (IP, request ID, method, path) pulled from the context.
//
// # Event Types
//
// Authorization: authz.access_check, authz.access_denied
// Membership: membership.add, membership.remove, membership.role_change, membership.status_change
// Invitations: invitation.create, invitation.accept, invitation.revoke
// Business: business.create, business.update, business.delete
// Policy: policy.register, policy.drop, policy.reload
// HTTP: http.request
//
// # Usage Example
//
// Log a decision from an enforcement point:
//
//	logger.LogDecision(ctx, "work_orders", "delete", &businessID, false, "role not permitted")
//
// Log a role change with before/after values:
//
//	logger.LogMembershipChange(ctx, audit.EventTypeMemberRoleChange, businessID, userID,
//		&audit.ChangeDetails{
//			Before: map[string]interface{}{"role": "staff"},
//			After:  map[string]interface{}{"role": "manager"},
//		},
//		"promoted to manager")
//
// Sinks implement the Logger interface. DBLogger persists to Postgres,
// FileLogger appends NDJSON, MultiLogger fans out to several sinks.
// Middleware attaches a logger to request contexts and records mutating
// requests automatically.
package audit
