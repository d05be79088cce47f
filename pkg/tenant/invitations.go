package tenant

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/roles"
)

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationAccepted = errors.New("invitation already accepted")
	ErrInvitationExpired  = errors.New("invitation expired")
)

// invitationTTL is how long an invitation stays redeemable by default.
const invitationTTL = 7 * 24 * time.Hour

// CreateInvitation creates (or re-issues) an invitation for an email to join
// a business with the given role. Re-inviting the same email rotates the
// token and extends the expiry.
func (s *Store) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if !inv.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, inv.Role)
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	inv.Token = token

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = time.Now().UTC()
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = inv.InvitedAt.Add(invitationTTL)
	}

	query := `
		INSERT INTO business_invitations (id, business_id, email, role, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (business_id, email) DO UPDATE
		SET role = EXCLUDED.role, token = EXCLUDED.token, invited_at = EXCLUDED.invited_at, expires_at = EXCLUDED.expires_at
	`
	_, err = s.db.ExecContext(ctx, query,
		inv.ID, inv.BusinessID, inv.Email, inv.Role, inv.Token,
		inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetInvitation retrieves an invitation by token.
func (s *Store) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, business_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM business_invitations
		WHERE token = $1
	`
	inv := &Invitation{}
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullString

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.BusinessID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt, &acceptedBy,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	if acceptedBy.Valid {
		if id, err := uuid.Parse(acceptedBy.String); err == nil {
			inv.AcceptedBy = &id
		}
	}
	return inv, nil
}

// ListInvitations lists open invitations for a business.
func (s *Store) ListInvitations(ctx context.Context, businessID uuid.UUID) ([]*Invitation, error) {
	query := `
		SELECT id, business_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM business_invitations
		WHERE business_id = $1 AND accepted_at IS NULL
		ORDER BY invited_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		var acceptedAt sql.NullTime
		var acceptedBy sql.NullString

		if err := rows.Scan(
			&inv.ID, &inv.BusinessID, &inv.Email, &inv.Role, &inv.Token,
			&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt, &acceptedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}

		if acceptedAt.Valid {
			t := acceptedAt.Time
			inv.AcceptedAt = &t
		}
		if acceptedBy.Valid {
			if id, err := uuid.Parse(acceptedBy.String); err == nil {
				inv.AcceptedBy = &id
			}
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// AcceptInvitation redeems an invitation and provisions an active
// membership for the accepting user, transactionally.
func (s *Store) AcceptInvitation(ctx context.Context, token string, userID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, business_id, role, invited_by, expires_at, accepted_at
		FROM business_invitations
		WHERE token = $1
	`
	var id, businessID uuid.UUID
	var role roles.Role
	var invitedBy uuid.UUID
	var expiresAt time.Time
	var acceptedAt sql.NullTime

	err = tx.QueryRowContext(ctx, query, token).Scan(&id, &businessID, &role, &invitedBy, &expiresAt, &acceptedAt)
	if err == sql.ErrNoRows {
		return ErrInvitationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	if acceptedAt.Valid {
		return ErrInvitationAccepted
	}
	if time.Now().After(expiresAt) {
		return ErrInvitationExpired
	}

	now := time.Now().UTC()
	query = `
		INSERT INTO business_users (id, business_id, user_id, role, status, invited_by, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (business_id, user_id) DO NOTHING
	`
	_, err = tx.ExecContext(ctx, query, uuid.New(), businessID, userID, role, MembershipStatusActive, invitedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	query = `UPDATE business_invitations SET accepted_at = $1, accepted_by = $2 WHERE id = $3`
	if _, err = tx.ExecContext(ctx, query, now, userID, id); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	return tx.Commit()
}

// RevokeInvitation withdraws an open invitation.
func (s *Store) RevokeInvitation(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM business_invitations WHERE id = $1 AND accepted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	return requireRow(result, ErrInvitationNotFound)
}

// CleanupExpiredInvitations removes invitations past their expiry that were
// never accepted.
func (s *Store) CleanupExpiredInvitations(ctx context.Context) error {
	query := `DELETE FROM business_invitations WHERE expires_at < $1 AND accepted_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
