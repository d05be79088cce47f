package policy

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerline/tenantguard/pkg/identity"
	"github.com/ledgerline/tenantguard/pkg/roles"
	"github.com/ledgerline/tenantguard/pkg/tenant"
)

type fixture struct {
	store    *tenant.Store
	resolver *tenant.Resolver
	enforcer *Enforcer
	registry *Registry
}

// newFixture wires a registry and enforcer over an in-memory database.
// The role cache is disabled so membership changes are visible immediately.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE businesses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			industry TEXT,
			status TEXT NOT NULL DEFAULT 'trial',
			subscription_tier TEXT NOT NULL DEFAULT 'starter',
			subscription_status TEXT NOT NULL DEFAULT 'trialing',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);
		CREATE TABLE business_users (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			invited_by TEXT,
			joined_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(business_id, user_id)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	registry := NewRegistry()
	f := &fixture{
		store:    tenant.NewStore(db),
		resolver: tenant.NewResolver(db),
		registry: registry,
		enforcer: NewEnforcer(registry, tenant.NewResolver(db), &EnforcerConfig{RoleCacheSize: 0}),
	}
	return f
}

func (f *fixture) business(t *testing.T, name string) *tenant.Business {
	t.Helper()
	b := &tenant.Business{Name: name, Status: tenant.BusinessStatusActive}
	if err := f.store.CreateBusiness(context.Background(), b); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}
	return b
}

func (f *fixture) member(t *testing.T, businessID uuid.UUID, role roles.Role) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	m := &tenant.Membership{
		BusinessID: businessID,
		UserID:     userID,
		Role:       role,
		Status:     tenant.MembershipStatusActive,
	}
	if err := f.store.AddMember(context.Background(), m); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	return userID
}

func asUser(userID uuid.UUID) context.Context {
	return identity.WithPrincipal(context.Background(), &identity.Principal{UserID: userID})
}

func TestAuthorizeTenantScopedOwner(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	bX := f.business(t, "Business X")
	bY := f.business(t, "Business Y")
	owner := f.member(t, bX.ID, roles.RoleOwner)
	ctx := asUser(owner)

	// Full access in the owner's own business
	for _, op := range Operations() {
		d := f.enforcer.Authorize(ctx, "invoices", op, Row{BusinessID: bX.ID})
		if !d.Allowed {
			t.Errorf("owner denied %s in own business: %s", op, d.Reason)
		}
	}

	// No access at all in a business the owner does not belong to
	for _, op := range Operations() {
		d := f.enforcer.Authorize(ctx, "invoices", op, Row{BusinessID: bY.ID})
		if d.Allowed {
			t.Errorf("owner allowed %s in foreign business", op)
		}
	}
}

func TestAuthorizeTenantScopedStaff(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	b := f.business(t, "Staff Co")
	staff := f.member(t, b.ID, roles.RoleStaff)
	ctx := asUser(staff)
	row := Row{BusinessID: b.ID}

	if d := f.enforcer.Authorize(ctx, "invoices", OpSelect, row); !d.Allowed {
		t.Errorf("staff denied select: %s", d.Reason)
	}
	for _, op := range []Operation{OpInsert, OpUpdate, OpDelete} {
		if d := f.enforcer.Authorize(ctx, "invoices", op, row); d.Allowed {
			t.Errorf("staff allowed %s", op)
		}
	}
}

func TestAuthorizeTenantScopedManager(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	b := f.business(t, "Manager Co")
	manager := f.member(t, b.ID, roles.RoleManager)
	ctx := asUser(manager)
	row := Row{BusinessID: b.ID}

	for _, op := range []Operation{OpSelect, OpInsert, OpUpdate} {
		if d := f.enforcer.Authorize(ctx, "invoices", op, row); !d.Allowed {
			t.Errorf("manager denied %s: %s", op, d.Reason)
		}
	}
	if d := f.enforcer.Authorize(ctx, "invoices", OpDelete, row); d.Allowed {
		t.Error("manager allowed delete")
	}
}

func TestAuthorizeAnonymousDenied(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	b := f.business(t, "Closed Co")
	row := Row{BusinessID: b.ID}

	for _, op := range Operations() {
		d := f.enforcer.Authorize(context.Background(), "invoices", op, row)
		if d.Allowed {
			t.Errorf("anonymous caller allowed %s", op)
		}
	}
}

func TestAuthorizeUnregisteredResource(t *testing.T) {
	f := newFixture(t)
	b := f.business(t, "Any Co")
	owner := f.member(t, b.ID, roles.RoleOwner)

	d := f.enforcer.Authorize(asUser(owner), "unknown_table", OpSelect, Row{BusinessID: b.ID})
	if d.Allowed {
		t.Error("unregistered resource must deny")
	}
}

func TestAuthorizeOwnerScoped(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(OwnerScoped("user_preferences")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	me := uuid.New()
	other := uuid.New()

	for _, op := range Operations() {
		d := f.enforcer.Authorize(asUser(me), "user_preferences", op, Row{OwnerID: me})
		if !d.Allowed {
			t.Errorf("owner denied %s on own row: %s", op, d.Reason)
		}

		d = f.enforcer.Authorize(asUser(me), "user_preferences", op, Row{OwnerID: other})
		if d.Allowed {
			t.Errorf("caller allowed %s on another user's row", op)
		}

		d = f.enforcer.Authorize(context.Background(), "user_preferences", op, Row{OwnerID: me})
		if d.Allowed {
			t.Errorf("anonymous caller allowed %s on owner-scoped row", op)
		}
	}

	// A row with no owner never matches
	d := f.enforcer.Authorize(asUser(me), "user_preferences", OpSelect, Row{})
	if d.Allowed {
		t.Error("row without owner must deny")
	}
}

func TestAuthorizePublicRead(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(PublicRead("service_catalog")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Select is open to everyone, including anonymous callers
	d := f.enforcer.Authorize(context.Background(), "service_catalog", OpSelect, Row{})
	if !d.Allowed {
		t.Errorf("anonymous select on public resource denied: %s", d.Reason)
	}

	// No write roles configured: writes deny even for members
	b := f.business(t, "Catalog Co")
	owner := f.member(t, b.ID, roles.RoleOwner)
	for _, op := range []Operation{OpInsert, OpUpdate, OpDelete} {
		d := f.enforcer.Authorize(asUser(owner), "service_catalog", op, Row{BusinessID: b.ID})
		if d.Allowed {
			t.Errorf("write %s allowed on read-only public resource", op)
		}
	}
}

func TestAuthorizePublicReadCondition(t *testing.T) {
	f := newFixture(t)
	listed := f.business(t, "Listed Co")
	unlisted := f.business(t, "Unlisted Co")

	p := PublicReadWhere("service_catalog", func(ctx context.Context, row Row) bool {
		return row.BusinessID == listed.ID
	})
	if err := f.registry.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Rows meeting the condition stay readable by everyone
	d := f.enforcer.Authorize(context.Background(), "service_catalog", OpSelect, Row{BusinessID: listed.ID})
	if !d.Allowed {
		t.Errorf("select on row meeting the condition denied: %s", d.Reason)
	}

	// Rows failing the condition deny, even for a member of that business
	owner := f.member(t, unlisted.ID, roles.RoleOwner)
	d = f.enforcer.Authorize(asUser(owner), "service_catalog", OpSelect, Row{BusinessID: unlisted.ID})
	if d.Allowed {
		t.Error("select allowed on row failing the condition")
	}

	d = f.enforcer.Authorize(context.Background(), "service_catalog", OpSelect, Row{BusinessID: unlisted.ID})
	if d.Allowed {
		t.Error("anonymous select allowed on row failing the condition")
	}
}

func TestAuthorizePublicWithWriteRoles(t *testing.T) {
	f := newFixture(t)
	p := PublicRead("service_catalog")
	p.UpdateRoles = roles.NewSet(roles.RoleOwner, roles.RoleAdmin)
	if err := f.registry.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	b := f.business(t, "Catalog Co")
	admin := f.member(t, b.ID, roles.RoleAdmin)
	staff := f.member(t, b.ID, roles.RoleStaff)

	if d := f.enforcer.Authorize(asUser(admin), "service_catalog", OpUpdate, Row{BusinessID: b.ID}); !d.Allowed {
		t.Errorf("admin denied configured public write: %s", d.Reason)
	}
	if d := f.enforcer.Authorize(asUser(staff), "service_catalog", OpUpdate, Row{BusinessID: b.ID}); d.Allowed {
		t.Error("staff allowed public write")
	}
}

func TestAuthorizeServiceBypass(t *testing.T) {
	f := newFixture(t)
	// Deliberately no registered policy: services bypass policy lookup
	ctx := identity.WithPrincipal(context.Background(), &identity.Principal{
		UserID:  uuid.New(),
		Service: true,
	})

	for _, op := range Operations() {
		d := f.enforcer.Authorize(ctx, "anything", op, Row{})
		if !d.Allowed {
			t.Errorf("service principal denied %s: %s", op, d.Reason)
		}
	}
}

func TestAuthorizeRevocationImmediate(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	b := f.business(t, "Revoke Co")
	user := f.member(t, b.ID, roles.RoleManager)
	ctx := asUser(user)
	row := Row{BusinessID: b.ID}

	if d := f.enforcer.Authorize(ctx, "invoices", OpSelect, row); !d.Allowed {
		t.Fatalf("expected allow before revocation: %s", d.Reason)
	}

	if err := f.store.UpdateMemberStatus(context.Background(), b.ID, user, tenant.MembershipStatusInactive); err != nil {
		t.Fatalf("UpdateMemberStatus failed: %v", err)
	}

	// Cache disabled: the revocation is visible on the next check
	if d := f.enforcer.Authorize(ctx, "invoices", OpSelect, row); d.Allowed {
		t.Error("expected deny after revocation")
	}
}

func TestAuthorizeRoleCacheServesStale(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cached := NewEnforcer(f.registry, f.resolver, DefaultEnforcerConfig())

	b := f.business(t, "Cache Co")
	user := f.member(t, b.ID, roles.RoleManager)
	ctx := asUser(user)
	row := Row{BusinessID: b.ID}

	if d := cached.Authorize(ctx, "invoices", OpSelect, row); !d.Allowed {
		t.Fatalf("expected allow: %s", d.Reason)
	}

	if err := f.store.UpdateMemberStatus(context.Background(), b.ID, user, tenant.MembershipStatusInactive); err != nil {
		t.Fatalf("UpdateMemberStatus failed: %v", err)
	}

	// Within the TTL the cached role still serves
	if d := cached.Authorize(ctx, "invoices", OpSelect, row); !d.Allowed {
		t.Errorf("expected cached allow within TTL, got deny: %s", d.Reason)
	}
}

func TestAuthorizeInvalidOperation(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Register(TenantScoped("invoices")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	d := f.enforcer.Authorize(context.Background(), "invoices", Operation("truncate"), Row{})
	if d.Allowed {
		t.Error("unknown operation must deny")
	}
}
