package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/roles"
)

func TestCreateAndGetBusiness(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Acme Plumbing", Industry: "trades"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	if b.ID == uuid.Nil {
		t.Error("expected generated ID")
	}
	if b.Slug != "acme-plumbing" {
		t.Errorf("expected slug acme-plumbing, got %q", b.Slug)
	}
	if b.Status != BusinessStatusTrial {
		t.Errorf("expected default status trial, got %q", b.Status)
	}

	got, err := store.GetBusiness(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBusiness failed: %v", err)
	}
	if got.Name != "Acme Plumbing" || got.Industry != "trades" {
		t.Errorf("unexpected business: %+v", got)
	}

	bySlug, err := store.GetBusinessBySlug(ctx, "acme-plumbing")
	if err != nil {
		t.Fatalf("GetBusinessBySlug failed: %v", err)
	}
	if bySlug.ID != b.ID {
		t.Errorf("expected %s, got %s", b.ID, bySlug.ID)
	}
}

func TestCreateBusinessInvalidSlug(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	b := &Business{Name: "Acme", Slug: "Not A Slug!"}
	err := store.CreateBusiness(context.Background(), b)
	if !errors.Is(err, ErrInvalidSlug) {
		t.Errorf("expected ErrInvalidSlug, got %v", err)
	}
}

func TestSoftDeleteBusiness(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Gone Soon"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	if err := store.SoftDeleteBusiness(ctx, b.ID); err != nil {
		t.Fatalf("SoftDeleteBusiness failed: %v", err)
	}

	if _, err := store.GetBusiness(ctx, b.ID); !errors.Is(err, ErrBusinessNotFound) {
		t.Errorf("expected ErrBusinessNotFound after soft delete, got %v", err)
	}

	// Row is retained, not removed
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM businesses WHERE id = $1", b.ID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected retained row, got count %d", count)
	}

	if err := store.SoftDeleteBusiness(ctx, b.ID); !errors.Is(err, ErrBusinessNotFound) {
		t.Errorf("expected ErrBusinessNotFound on double delete, got %v", err)
	}
}

func TestUpdateBusinessStatus(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Lifecycle"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	if err := store.UpdateBusinessStatus(ctx, b.ID, BusinessStatusActive); err != nil {
		t.Fatalf("UpdateBusinessStatus failed: %v", err)
	}

	got, err := store.GetBusiness(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBusiness failed: %v", err)
	}
	if got.Status != BusinessStatusActive {
		t.Errorf("expected active, got %q", got.Status)
	}

	if err := store.UpdateBusinessStatus(ctx, uuid.New(), BusinessStatusActive); !errors.Is(err, ErrBusinessNotFound) {
		t.Errorf("expected ErrBusinessNotFound, got %v", err)
	}
}

func TestAddMember(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Team Co"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	userID := uuid.New()
	m := &Membership{BusinessID: b.ID, UserID: userID, Role: roles.RoleOwner, Status: MembershipStatusActive}
	if err := store.AddMember(ctx, m); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if m.JoinedAt == nil {
		t.Error("expected joined_at stamped for active membership")
	}

	// Second membership for the same (business, user) pair is rejected
	dup := &Membership{BusinessID: b.ID, UserID: userID, Role: roles.RoleStaff, Status: MembershipStatusActive}
	if err := store.AddMember(ctx, dup); !errors.Is(err, ErrMemberExists) {
		t.Errorf("expected ErrMemberExists, got %v", err)
	}

	// Original role unchanged
	got, err := store.GetMember(ctx, b.ID, userID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if got.Role != roles.RoleOwner {
		t.Errorf("expected owner, got %q", got.Role)
	}
}

func TestAddMemberInvalidRole(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := &Membership{BusinessID: uuid.New(), UserID: uuid.New(), Role: "superuser"}
	if err := store.AddMember(context.Background(), m); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestMembershipPerBusinessRoles(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b1 := &Business{Name: "First Shop"}
	b2 := &Business{Name: "Second Shop"}
	for _, b := range []*Business{b1, b2} {
		if err := store.CreateBusiness(ctx, b); err != nil {
			t.Fatalf("CreateBusiness failed: %v", err)
		}
	}

	// Same user, different role per business
	userID := uuid.New()
	if err := store.AddMember(ctx, &Membership{BusinessID: b1.ID, UserID: userID, Role: roles.RoleOwner, Status: MembershipStatusActive}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := store.AddMember(ctx, &Membership{BusinessID: b2.ID, UserID: userID, Role: roles.RoleStaff, Status: MembershipStatusActive}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	m1, err := store.GetMember(ctx, b1.ID, userID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	m2, err := store.GetMember(ctx, b2.ID, userID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if m1.Role != roles.RoleOwner || m2.Role != roles.RoleStaff {
		t.Errorf("expected owner/staff, got %q/%q", m1.Role, m2.Role)
	}
}

func TestUpdateMemberStatus(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Status Co"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	userID := uuid.New()
	m := &Membership{BusinessID: b.ID, UserID: userID, Role: roles.RoleStaff}
	if err := store.AddMember(ctx, m); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if m.Status != MembershipStatusPending {
		t.Errorf("expected default pending, got %q", m.Status)
	}
	if m.JoinedAt != nil {
		t.Error("pending membership should not have joined_at")
	}

	if err := store.UpdateMemberStatus(ctx, b.ID, userID, MembershipStatusActive); err != nil {
		t.Fatalf("UpdateMemberStatus failed: %v", err)
	}

	got, err := store.GetMember(ctx, b.ID, userID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if got.Status != MembershipStatusActive {
		t.Errorf("expected active, got %q", got.Status)
	}
	if got.JoinedAt == nil {
		t.Error("expected joined_at stamped on activation")
	}
}

func TestRemoveMember(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Leavers"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	userID := uuid.New()
	if err := store.AddMember(ctx, &Membership{BusinessID: b.ID, UserID: userID, Role: roles.RoleManager, Status: MembershipStatusActive}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	if err := store.RemoveMember(ctx, b.ID, userID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	if _, err := store.GetMember(ctx, b.ID, userID); !errors.Is(err, ErrMembershipNotFound) {
		t.Errorf("expected ErrMembershipNotFound, got %v", err)
	}

	if err := store.RemoveMember(ctx, b.ID, userID); !errors.Is(err, ErrMembershipNotFound) {
		t.Errorf("expected ErrMembershipNotFound on double remove, got %v", err)
	}
}

func TestListMembers(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	b := &Business{Name: "Roster"}
	if err := store.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	for _, role := range []roles.Role{roles.RoleOwner, roles.RoleManager, roles.RoleClient} {
		m := &Membership{BusinessID: b.ID, UserID: uuid.New(), Role: role, Status: MembershipStatusActive}
		if err := store.AddMember(ctx, m); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
	}

	members, err := store.ListMembers(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 3 {
		t.Errorf("expected 3 members, got %d", len(members))
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Acme Plumbing", "acme-plumbing"},
		{"  Joe's Diner  ", "joes-diner"},
		{"ALL CAPS LLC", "all-caps-llc"},
		{"double  space", "double-space"},
		{"trailing-", "trailing"},
	}
	for _, tt := range tests {
		if got := GenerateSlug(tt.name); got != tt.want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
