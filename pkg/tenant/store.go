package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/roles"
)

// Sentinel errors surfaced by the store.
var (
	ErrBusinessNotFound   = errors.New("business not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMemberExists       = errors.New("membership already exists")
	ErrInvalidSlug        = errors.New("slug must be lowercase alphanumeric with hyphens")
	ErrInvalidRole        = errors.New("invalid role")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Store persists businesses and memberships in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new tenant store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components that share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateBusiness provisions a new business. The slug is generated from the
// name when absent and must be unique.
func (s *Store) CreateBusiness(ctx context.Context, b *Business) error {
	if b.Slug == "" {
		b.Slug = GenerateSlug(b.Name)
	}
	if !slugPattern.MatchString(b.Slug) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, b.Slug)
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BusinessStatusTrial
	}
	if b.SubscriptionTier == "" {
		b.SubscriptionTier = TierStarter
	}
	if b.SubscriptionStatus == "" {
		b.SubscriptionStatus = SubscriptionStatusTrialing
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO businesses (id, name, slug, industry, status, subscription_tier, subscription_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Slug, b.Industry, b.Status,
		b.SubscriptionTier, b.SubscriptionStatus, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}

	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBusiness retrieves a business by ID. Soft-deleted businesses are not
// returned: a scoped row must always resolve to a non-deleted business.
func (s *Store) GetBusiness(ctx context.Context, id uuid.UUID) (*Business, error) {
	query := `
		SELECT id, name, slug, industry, status, subscription_tier, subscription_status, created_at, updated_at, deleted_at
		FROM businesses
		WHERE id = $1 AND deleted_at IS NULL
	`
	return s.scanBusiness(s.db.QueryRowContext(ctx, query, id))
}

// GetBusinessBySlug retrieves a business by slug.
func (s *Store) GetBusinessBySlug(ctx context.Context, slug string) (*Business, error) {
	query := `
		SELECT id, name, slug, industry, status, subscription_tier, subscription_status, created_at, updated_at, deleted_at
		FROM businesses
		WHERE slug = $1 AND deleted_at IS NULL
	`
	return s.scanBusiness(s.db.QueryRowContext(ctx, query, slug))
}

func (s *Store) scanBusiness(row *sql.Row) (*Business, error) {
	b := &Business{}
	var industry sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.Name, &b.Slug, &industry, &b.Status,
		&b.SubscriptionTier, &b.SubscriptionStatus,
		&b.CreatedAt, &b.UpdatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	if industry.Valid {
		b.Industry = industry.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		b.DeletedAt = &t
	}
	return b, nil
}

// UpdateBusinessStatus moves a business through its lifecycle.
func (s *Store) UpdateBusinessStatus(ctx context.Context, id uuid.UUID, status BusinessStatus) error {
	query := `UPDATE businesses SET status = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update business status: %w", err)
	}
	return requireRow(result, ErrBusinessNotFound)
}

// SoftDeleteBusiness marks a business deleted while retaining the row for
// audit and history. Child rows without their own soft-delete are removed by
// the storage layer's cascading foreign keys.
func (s *Store) SoftDeleteBusiness(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE businesses SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete business: %w", err)
	}
	return requireRow(result, ErrBusinessNotFound)
}

// AddMember adds a user to a business. At most one membership may exist per
// (business, user) pair.
func (s *Store) AddMember(ctx context.Context, m *Membership) error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MembershipStatusPending
	}

	now := time.Now().UTC()
	if m.Status == MembershipStatusActive && m.JoinedAt == nil {
		m.JoinedAt = &now
	}

	query := `
		INSERT INTO business_users (id, business_id, user_id, role, status, invited_by, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (business_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		m.ID, m.BusinessID, m.UserID, m.Role, m.Status,
		m.InvitedBy, m.JoinedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberExists
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMember retrieves the membership for (business, user).
func (s *Store) GetMember(ctx context.Context, businessID, userID uuid.UUID) (*Membership, error) {
	query := `
		SELECT id, business_id, user_id, role, status, invited_by, joined_at, created_at, updated_at
		FROM business_users
		WHERE business_id = $1 AND user_id = $2
	`
	m := &Membership{}
	var invitedBy sql.NullString
	var joinedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, businessID, userID).Scan(
		&m.ID, &m.BusinessID, &m.UserID, &m.Role, &m.Status,
		&invitedBy, &joinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	if invitedBy.Valid {
		if id, err := uuid.Parse(invitedBy.String); err == nil {
			m.InvitedBy = &id
		}
	}
	if joinedAt.Valid {
		t := joinedAt.Time
		m.JoinedAt = &t
	}
	return m, nil
}

// ListMembers retrieves all memberships of a business, any status.
func (s *Store) ListMembers(ctx context.Context, businessID uuid.UUID) ([]*Membership, error) {
	query := `
		SELECT id, business_id, user_id, role, status, invited_by, joined_at, created_at, updated_at
		FROM business_users
		WHERE business_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		var invitedBy sql.NullString
		var joinedAt sql.NullTime

		if err := rows.Scan(
			&m.ID, &m.BusinessID, &m.UserID, &m.Role, &m.Status,
			&invitedBy, &joinedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}

		if invitedBy.Valid {
			if id, err := uuid.Parse(invitedBy.String); err == nil {
				m.InvitedBy = &id
			}
		}
		if joinedAt.Valid {
			t := joinedAt.Time
			m.JoinedAt = &t
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// UpdateMemberRole changes a member's role within one business.
func (s *Store) UpdateMemberRole(ctx context.Context, businessID, userID uuid.UUID, role roles.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	query := `UPDATE business_users SET role = $1, updated_at = $2 WHERE business_id = $3 AND user_id = $4`
	result, err := s.db.ExecContext(ctx, query, role, time.Now().UTC(), businessID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return requireRow(result, ErrMembershipNotFound)
}

// UpdateMemberStatus transitions a membership's status. Activating a
// pending membership stamps joined_at.
func (s *Store) UpdateMemberStatus(ctx context.Context, businessID, userID uuid.UUID, status MembershipStatus) error {
	now := time.Now().UTC()

	var result sql.Result
	var err error
	if status == MembershipStatusActive {
		query := `
			UPDATE business_users
			SET status = $1, joined_at = COALESCE(joined_at, $2), updated_at = $2
			WHERE business_id = $3 AND user_id = $4
		`
		result, err = s.db.ExecContext(ctx, query, status, now, businessID, userID)
	} else {
		query := `UPDATE business_users SET status = $1, updated_at = $2 WHERE business_id = $3 AND user_id = $4`
		result, err = s.db.ExecContext(ctx, query, status, now, businessID, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update member status: %w", err)
	}
	return requireRow(result, ErrMembershipNotFound)
}

// RemoveMember removes a user from a business.
func (s *Store) RemoveMember(ctx context.Context, businessID, userID uuid.UUID) error {
	query := `DELETE FROM business_users WHERE business_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, businessID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return requireRow(result, ErrMembershipNotFound)
}

// GenerateSlug derives a URL-safe slug from a business name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

func requireRow(result sql.Result, missing error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return missing
	}
	return nil
}
