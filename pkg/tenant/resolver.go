package tenant

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/contextkeys"
	"github.com/ledgerline/tenantguard/pkg/identity"
	"github.com/ledgerline/tenantguard/pkg/roles"
)

// Resolver answers the membership questions every table-level policy
// composes. All methods are pure reads over business_users joined against
// non-deleted businesses; a caller without identity gets empty results, not
// errors (fail-closed).
//
// Authorization-critical checks always go through the Resolver directly.
// The cached membership view (pkg/memberview) is an accelerator for
// non-authoritative display paths only.
type Resolver struct {
	db *sql.DB
}

// NewResolver creates a membership resolver.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// WithBusiness pins the given business onto the context. Resolver methods
// that need "the current business" use the pinned one instead of picking an
// arbitrary membership.
func WithBusiness(ctx context.Context, b *Business) context.Context {
	return contextkeys.WithBusiness(ctx, b)
}

// CurrentBusiness returns the business pinned on ctx, if any.
func CurrentBusiness(ctx context.Context) *Business {
	b, ok := ctx.Value(contextkeys.BusinessKey).(*Business)
	if !ok {
		return nil
	}
	return b
}

// ActiveBusinessIDs returns every business where the current caller holds an
// active membership. Anonymous callers get an empty set.
func (r *Resolver) ActiveBusinessIDs(ctx context.Context) ([]uuid.UUID, error) {
	return r.ActiveBusinessIDsOf(ctx, identity.CurrentUserID(ctx))
}

// ActiveBusinessIDsOf is ActiveBusinessIDs for an explicit user.
func (r *Resolver) ActiveBusinessIDsOf(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if userID == identity.NilUserID {
		return nil, nil
	}

	query := `
		SELECT bu.business_id
		FROM business_users bu
		JOIN businesses b ON b.id = bu.business_id
		WHERE bu.user_id = $1 AND bu.status = $2 AND b.deleted_at IS NULL
		ORDER BY bu.created_at ASC, bu.business_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, MembershipStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active businesses: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan business id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveBusinessIDsWithRole restricts ActiveBusinessIDs to memberships whose
// role is in the given set. The match is exact, not hierarchical: asking for
// {manager} does not return businesses where the caller is owner.
func (r *Resolver) ActiveBusinessIDsWithRole(ctx context.Context, roleSet roles.Set) ([]uuid.UUID, error) {
	userID := identity.CurrentUserID(ctx)
	if userID == identity.NilUserID || len(roleSet) == 0 {
		return nil, nil
	}

	query := `
		SELECT bu.business_id
		FROM business_users bu
		JOIN businesses b ON b.id = bu.business_id
		WHERE bu.user_id = $1 AND bu.status = $2 AND b.deleted_at IS NULL AND bu.role IN (`
	args := []interface{}{userID, MembershipStatusActive}
	for i, role := range roleSet.Slice() {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", len(args)+1)
		args = append(args, role)
	}
	query += `) ORDER BY bu.created_at ASC, bu.business_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve businesses by role: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan business id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CurrentBusinessID returns the caller's business pinned on the context or,
// failing that, one of the caller's active businesses. When the caller
// belongs to multiple businesses and none is pinned, which one is returned
// is arbitrary: callers needing a specific tenant must pin it explicitly
// rather than rely on this convenience. Returns false when the caller has
// no active membership at all.
func (r *Resolver) CurrentBusinessID(ctx context.Context) (uuid.UUID, bool, error) {
	if b := CurrentBusiness(ctx); b != nil {
		return b.ID, true, nil
	}

	userID := identity.CurrentUserID(ctx)
	if userID == identity.NilUserID {
		return uuid.Nil, false, nil
	}

	query := `
		SELECT bu.business_id
		FROM business_users bu
		JOIN businesses b ON b.id = bu.business_id
		WHERE bu.user_id = $1 AND bu.status = $2 AND b.deleted_at IS NULL
		ORDER BY bu.created_at ASC, bu.business_id ASC
		LIMIT 1
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, userID, MembershipStatusActive).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to resolve current business: %w", err)
	}
	return id, true, nil
}

// BelongsToBusiness reports whether the current caller holds an active
// membership in the given business.
func (r *Resolver) BelongsToBusiness(ctx context.Context, businessID uuid.UUID) (bool, error) {
	userID := identity.CurrentUserID(ctx)
	if userID == identity.NilUserID || businessID == uuid.Nil {
		return false, nil
	}

	query := `
		SELECT 1
		FROM business_users bu
		JOIN businesses b ON b.id = bu.business_id
		WHERE bu.user_id = $1 AND bu.business_id = $2 AND bu.status = $3 AND b.deleted_at IS NULL
	`
	var one int
	err := r.db.QueryRowContext(ctx, query, userID, businessID, MembershipStatusActive).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// RoleInBusiness returns the caller's role in the given business, or
// ErrMembershipNotFound when no active membership exists.
func (r *Resolver) RoleInBusiness(ctx context.Context, businessID uuid.UUID) (roles.Role, error) {
	userID := identity.CurrentUserID(ctx)
	if userID == identity.NilUserID || businessID == uuid.Nil {
		return "", ErrMembershipNotFound
	}

	query := `
		SELECT bu.role
		FROM business_users bu
		JOIN businesses b ON b.id = bu.business_id
		WHERE bu.user_id = $1 AND bu.business_id = $2 AND bu.status = $3 AND b.deleted_at IS NULL
	`
	var role roles.Role
	err := r.db.QueryRowContext(ctx, query, userID, businessID, MembershipStatusActive).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrMembershipNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	return role, nil
}

// HasRole reports whether the caller's role in their current business
// satisfies required per the dominance allow-list. Callers with multiple
// active businesses and no pinned business inherit CurrentBusinessID's
// arbitrary pick; cross-tenant checks must pin the business first.
func (r *Resolver) HasRole(ctx context.Context, required roles.Role) (bool, error) {
	businessID, ok, err := r.CurrentBusinessID(ctx)
	if err != nil || !ok {
		return false, err
	}

	actual, err := r.RoleInBusiness(ctx, businessID)
	if err == ErrMembershipNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return roles.HasRole(actual, required), nil
}

// CheckHierarchicalAccess decides whether the caller, acting in their
// current business, may perform permission against a record held by
// targetRole. Inherits CurrentBusinessID's arbitrary pick; see HasRole.
func (r *Resolver) CheckHierarchicalAccess(ctx context.Context, targetRole roles.Role, permission roles.Permission) (bool, error) {
	businessID, ok, err := r.CurrentBusinessID(ctx)
	if err != nil || !ok {
		return false, err
	}

	actual, err := r.RoleInBusiness(ctx, businessID)
	if err == ErrMembershipNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return roles.CheckHierarchicalAccess(actual, targetRole, permission), nil
}
