package roles

import "testing"

func TestHasRole_AllowList(t *testing.T) {
	// Exhaustive matrix: only the pairs listed as allowed may pass.
	allowed := map[Role]map[Role]bool{
		RoleOwner:   {RoleOwner: true, RoleAdmin: true, RoleManager: true, RoleStaff: true, RoleClient: true},
		RoleAdmin:   {RoleAdmin: true, RoleManager: true, RoleStaff: true},
		RoleManager: {RoleManager: true, RoleStaff: true},
		RoleStaff:   {RoleStaff: true},
		RoleClient:  {RoleClient: true},
	}

	for _, actual := range All() {
		for _, required := range All() {
			want := allowed[actual][required]
			got := HasRole(actual, required)
			if got != want {
				t.Errorf("HasRole(%s, %s) = %v, want %v", actual, required, got, want)
			}
		}
	}
}

func TestHasRole_NegativeCases(t *testing.T) {
	// The sharp edges named in the design: no ordinal comparison.
	if HasRole(RoleStaff, RoleManager) {
		t.Error("staff must not satisfy manager")
	}
	if HasRole(RoleStaff, RoleAdmin) {
		t.Error("staff must not satisfy admin")
	}
	if HasRole(RoleAdmin, RoleOwner) {
		t.Error("admin must not satisfy owner")
	}
	if HasRole(RoleClient, RoleStaff) {
		t.Error("client must not satisfy any staff-hierarchy role")
	}
}

func TestHasRole_InvalidRoles(t *testing.T) {
	if HasRole("superuser", RoleStaff) {
		t.Error("unknown actual role must fail")
	}
	if HasRole(RoleOwner, "root") {
		t.Error("unknown required role must fail")
	}
	if HasRole("", "") {
		t.Error("empty roles must fail")
	}
}

func TestCheckHierarchicalAccess(t *testing.T) {
	tests := []struct {
		name       string
		actor      Role
		target     Role
		permission Permission
		want       bool
	}{
		{"owner any permission any target", RoleOwner, RoleOwner, PermissionOwnerOnly, true},
		{"owner delete against client", RoleOwner, RoleClient, PermissionDelete, true},
		{"admin write against owner", RoleAdmin, RoleOwner, PermissionWrite, true},
		{"admin delete against manager", RoleAdmin, RoleManager, PermissionDelete, true},
		{"admin denied owner_only", RoleAdmin, RoleStaff, PermissionOwnerOnly, false},
		{"manager read against staff", RoleManager, RoleStaff, PermissionRead, true},
		{"manager write against client", RoleManager, RoleClient, PermissionWrite, true},
		{"manager denied delete", RoleManager, RoleStaff, PermissionDelete, false},
		{"manager denied against admin", RoleManager, RoleAdmin, PermissionRead, false},
		{"manager denied against owner", RoleManager, RoleOwner, PermissionWrite, false},
		{"staff read only", RoleStaff, RoleClient, PermissionRead, true},
		{"staff denied write", RoleStaff, RoleClient, PermissionWrite, false},
		{"staff denied owner_only", RoleStaff, RoleStaff, PermissionOwnerOnly, false},
		{"client always denied", RoleClient, RoleClient, PermissionRead, false},
		{"invalid actor denied", "nobody", RoleStaff, PermissionRead, false},
		{"invalid target denied", RoleOwner, "ghost", PermissionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckHierarchicalAccess(tt.actor, tt.target, tt.permission)
			if got != tt.want {
				t.Errorf("CheckHierarchicalAccess(%s, %s, %s) = %v, want %v",
					tt.actor, tt.target, tt.permission, got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	set := NewSet(RoleOwner, RoleAdmin, RoleManager)

	if !set.Contains(RoleOwner) || !set.Contains(RoleAdmin) || !set.Contains(RoleManager) {
		t.Error("expected set to contain owner, admin, manager")
	}
	if set.Contains(RoleStaff) || set.Contains(RoleClient) {
		t.Error("expected set not to contain staff or client")
	}

	slice := set.Slice()
	if len(slice) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(slice))
	}
	if slice[0] != RoleOwner {
		t.Errorf("expected owner first, got %s", slice[0])
	}
}

func TestSet_IgnoresInvalid(t *testing.T) {
	set := NewSet(RoleStaff, "rogue")
	if len(set) != 1 {
		t.Errorf("expected invalid role to be ignored, got %d entries", len(set))
	}
}
