// Package policy implements declarative row-level authorization for
// tenant-scoped resources.
//
// Each resource registers one ResourcePolicy describing its scoping strategy
// and the minimum role sets per operation. A single generic entry point,
// Enforcer.Authorize, evaluates the policy for the calling principal against
// a concrete row. Evaluation is fail-closed: unregistered resources, absent
// identity, and lookup failures all produce a deny Decision, never a
// distinguishable error.
package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/roles"
)

// Operation is a row-level operation a policy governs.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations returns all governed operations.
func Operations() []Operation {
	return []Operation{OpSelect, OpInsert, OpUpdate, OpDelete}
}

// Valid reports whether op is a governed operation.
func (op Operation) Valid() bool {
	switch op {
	case OpSelect, OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Scope is a resource's scoping strategy.
type Scope string

const (
	// ScopeTenant isolates rows by business: select requires any active
	// membership in the row's business, writes require the operation's
	// role set.
	ScopeTenant Scope = "tenant"
	// ScopeOwner restricts all operations to the row's owning user.
	ScopeOwner Scope = "owner"
	// ScopePublic allows select to anyone; writes follow the operation
	// role sets and are denied when none are configured.
	ScopePublic Scope = "public"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeTenant, ScopeOwner, ScopePublic:
		return true
	}
	return false
}

var (
	ErrPolicyExists   = errors.New("policy already registered for resource")
	ErrPolicyNotFound = errors.New("no policy registered for resource")
	ErrInvalidPolicy  = errors.New("invalid policy")
)

// ResourcePolicy is the declarative access configuration for one resource
// (one logical table). Role sets are exact membership checks against the
// caller's role in the row's business; they do not apply role dominance.
type ResourcePolicy struct {
	Resource string
	Scope    Scope

	// Per-operation role sets for writes under ScopeTenant and ScopePublic.
	// A nil set denies the operation. Select under ScopeTenant ignores
	// these: any active membership suffices.
	InsertRoles roles.Set
	UpdateRoles roles.Set
	DeleteRoles roles.Set

	// SelectCondition gates select under ScopePublic. Nil means
	// unconditionally readable. Registered programmatically; the YAML
	// config cannot express it.
	SelectCondition func(ctx context.Context, row Row) bool
}

// WriteRoles returns the role set governing op, or nil for OpSelect.
func (p *ResourcePolicy) WriteRoles(op Operation) roles.Set {
	switch op {
	case OpInsert:
		return p.InsertRoles
	case OpUpdate:
		return p.UpdateRoles
	case OpDelete:
		return p.DeleteRoles
	}
	return nil
}

// Validate checks the policy is well formed.
func (p *ResourcePolicy) Validate() error {
	if p.Resource == "" {
		return errors.New("policy resource is required")
	}
	if !p.Scope.Valid() {
		return errors.New("policy scope must be tenant, owner or public")
	}
	for _, set := range []roles.Set{p.InsertRoles, p.UpdateRoles, p.DeleteRoles} {
		for r := range set {
			if !r.Valid() {
				return errors.New("policy role set contains unknown role " + string(r))
			}
		}
	}
	return nil
}

// Row carries the authorization-relevant columns of the row under
// evaluation. BusinessID is the tenant column; OwnerID the owning user for
// owner-scoped resources. Either may be uuid.Nil when the resource's scope
// does not use it.
type Row struct {
	BusinessID uuid.UUID
	OwnerID    uuid.UUID
}

// Decision is the outcome of one authorization check. Denial is expressed
// here, never as an error, so callers cannot distinguish "row absent" from
// "row forbidden".
type Decision struct {
	Allowed   bool
	Resource  string
	Operation Operation
	Reason    string
}

func allow(resource string, op Operation, reason string) Decision {
	return Decision{Allowed: true, Resource: resource, Operation: op, Reason: reason}
}

func deny(resource string, op Operation, reason string) Decision {
	return Decision{Allowed: false, Resource: resource, Operation: op, Reason: reason}
}

// TenantScoped returns the standard policy for a business-scoped table:
// select for any active member, insert/update for owner, admin and manager,
// delete for owner and admin.
func TenantScoped(resource string) *ResourcePolicy {
	return &ResourcePolicy{
		Resource:    resource,
		Scope:       ScopeTenant,
		InsertRoles: roles.NewSet(roles.RoleOwner, roles.RoleAdmin, roles.RoleManager),
		UpdateRoles: roles.NewSet(roles.RoleOwner, roles.RoleAdmin, roles.RoleManager),
		DeleteRoles: roles.NewSet(roles.RoleOwner, roles.RoleAdmin),
	}
}

// OwnerScoped returns the policy for a user-owned table: every operation
// requires the row's owner to be the caller.
func OwnerScoped(resource string) *ResourcePolicy {
	return &ResourcePolicy{Resource: resource, Scope: ScopeOwner}
}

// PublicRead returns the policy for a publicly readable table: select for
// anyone, no writes unless role sets are added explicitly.
func PublicRead(resource string) *ResourcePolicy {
	return &ResourcePolicy{Resource: resource, Scope: ScopePublic}
}

// PublicReadWhere returns a public-read policy whose select is gated by
// condition, evaluated per row at check time.
func PublicReadWhere(resource string, condition func(ctx context.Context, row Row) bool) *ResourcePolicy {
	return &ResourcePolicy{Resource: resource, Scope: ScopePublic, SelectCondition: condition}
}
