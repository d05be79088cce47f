// Package roles defines the fixed business role model and the dominance
// rules used by the authorization layer.
//
// # Overview
//
// Every membership carries exactly one Role out of a fixed, ordered set:
//
//	owner > admin > manager > staff    (the staff hierarchy)
//	client                             (external-facing, outside the hierarchy)
//
// Dominance is NOT an ordinal comparison. HasRole consults an explicit
// allow-list of (actual, required) pairs, and client never passes any
// HasRole check: client access is scoped through direct row ownership,
// never through role dominance.
//
// A second, finer-grained evaluator, CheckHierarchicalAccess, governs
// cross-role management actions (for example a manager editing a staff
// member's record) with its own rule table and a default of deny.
package roles

// Role represents a business-level role carried by a membership.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleClient  Role = "client"
)

// All returns every defined role.
func All() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleManager, RoleStaff, RoleClient}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleStaff, RoleClient:
		return true
	}
	return false
}

// hasRoleAllowList enumerates every (actual, required) pair that passes a
// HasRole check beyond the exact match. Anything absent fails.
var hasRoleAllowList = map[Role][]Role{
	RoleOwner:   {RoleAdmin, RoleManager, RoleStaff, RoleClient},
	RoleAdmin:   {RoleManager, RoleStaff},
	RoleManager: {RoleStaff},
}

// HasRole reports whether a caller holding actual satisfies a requirement
// for required. Exact match always passes; otherwise only the pairs in the
// allow-list pass. In particular staff never satisfies manager or admin,
// admin never satisfies owner, and client satisfies nothing but client.
func HasRole(actual, required Role) bool {
	if !actual.Valid() || !required.Valid() {
		return false
	}
	if actual == required {
		return true
	}
	for _, r := range hasRoleAllowList[actual] {
		if r == required {
			return true
		}
	}
	return false
}

// Permission is the verb used by cross-role management checks.
type Permission string

const (
	PermissionRead      Permission = "read"
	PermissionWrite     Permission = "write"
	PermissionDelete    Permission = "delete"
	PermissionOwnerOnly Permission = "owner_only"
)

// CheckHierarchicalAccess decides whether an actor holding actorRole may
// perform permission against a record belonging to targetRole. Rule table:
//
//	owner   -> any permission, any target
//	admin   -> any permission except owner_only, any target
//	manager -> read/write against staff and client only
//	staff   -> read only
//
// Everything else, including any client actor, is denied.
func CheckHierarchicalAccess(actorRole, targetRole Role, permission Permission) bool {
	if !actorRole.Valid() || !targetRole.Valid() {
		return false
	}

	switch actorRole {
	case RoleOwner:
		return true
	case RoleAdmin:
		return permission != PermissionOwnerOnly
	case RoleManager:
		if permission != PermissionRead && permission != PermissionWrite {
			return false
		}
		return targetRole == RoleStaff || targetRole == RoleClient
	case RoleStaff:
		return permission == PermissionRead
	}

	return false
}

// Set is an unordered collection of roles used for exact-match membership
// filters (the tenant-scoped policy templates express their minimum role
// requirements as Sets).
type Set map[Role]struct{}

// NewSet builds a Set from the given roles, ignoring invalid ones.
func NewSet(rs ...Role) Set {
	set := make(Set, len(rs))
	for _, r := range rs {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// Contains reports whether r is in the set.
func (s Set) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Slice returns the set's members in a fixed owner-first order.
func (s Set) Slice() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range All() {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}
