// Package tenant provides the multi-tenant business and membership model
// that the authorization layer is built on.
//
// # Overview
//
// A Business is the isolation boundary: every tenant-scoped row carries a
// business_id that must resolve to a non-deleted Business. A Membership is
// the (business, user) join granting one role within one tenant; only
// memberships with status "active" confer any access. A user may hold
// different roles in different businesses simultaneously; role is a
// property of the membership, not the user.
//
// The Resolver in this package is the membership-resolution building block
// every table-level policy composes. It is a set of pure read queries, safe
// to evaluate repeatedly per request.
package tenant

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/roles"
)

// BusinessStatus represents the lifecycle status of a business.
type BusinessStatus string

const (
	BusinessStatusTrial     BusinessStatus = "trial"
	BusinessStatusActive    BusinessStatus = "active"
	BusinessStatusSuspended BusinessStatus = "suspended"
	BusinessStatusInactive  BusinessStatus = "inactive"
	BusinessStatusCancelled BusinessStatus = "cancelled"
)

// SubscriptionStatus represents the billing state of a business.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// SubscriptionTier represents subscription plan tiers.
type SubscriptionTier string

const (
	TierStarter    SubscriptionTier = "starter"
	TierGrowth     SubscriptionTier = "growth"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Business represents a tenant: the isolation boundary owning a set of
// scoped rows. Businesses are soft-deleted (DeletedAt set, row retained for
// audit and history), never hard-deleted while child rows exist.
type Business struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	Industry           string             `json:"industry,omitempty"`
	Status             BusinessStatus     `json:"status"`
	SubscriptionTier   SubscriptionTier   `json:"subscription_tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	DeletedAt          *time.Time         `json:"deleted_at,omitempty"`
}

// Deleted reports whether the business has been soft-deleted.
func (b *Business) Deleted() bool {
	return b.DeletedAt != nil
}

// MembershipStatus represents the state of a membership. Only "active"
// confers access; transitions run pending -> active -> inactive.
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
	MembershipStatusPending  MembershipStatus = "pending"
)

// Membership is the many-to-many join between a user and a business,
// carrying the user's role within that one tenant. At most one membership
// exists per (business, user) pair.
type Membership struct {
	ID         uuid.UUID        `json:"id"`
	BusinessID uuid.UUID        `json:"business_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Role       roles.Role       `json:"role"`
	Status     MembershipStatus `json:"status"`
	InvitedBy  *uuid.UUID       `json:"invited_by,omitempty"`
	JoinedAt   *time.Time       `json:"joined_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Active reports whether the membership currently confers access.
func (m *Membership) Active() bool {
	return m.Status == MembershipStatusActive
}

// Invitation represents a pending invite to join a business with a given
// role. Accepting an invitation provisions the membership.
type Invitation struct {
	ID         uuid.UUID  `json:"id"`
	BusinessID uuid.UUID  `json:"business_id"`
	Email      string     `json:"email"`
	Role       roles.Role `json:"role"`
	Token      string     `json:"token,omitempty"`
	InvitedBy  uuid.UUID  `json:"invited_by"`
	InvitedAt  time.Time  `json:"invited_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *uuid.UUID `json:"accepted_by,omitempty"`
}
