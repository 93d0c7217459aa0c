package services

import (
	"testing"

	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/google/go-cmp/cmp"
)

func ptr[T any](v T) *T { return &v }

func TestEffectiveFilter(t *testing.T) {
	requested := models.Filter{EmployeeID: ptr(int64(999)), Year: ptr(2024), Skip: 5, Limit: 10}

	tests := []struct {
		name string
		who  models.Identity
		want models.Filter
	}{
		{
			name: "employee is narrowed to own id",
			who:  models.Identity{EmployeeID: 42, Role: models.RoleEmployee},
			want: models.Filter{EmployeeID: ptr(int64(42)), Year: ptr(2024), Skip: 5, Limit: 10},
		},
		{
			name: "hr manager keeps filter",
			who:  models.Identity{EmployeeID: 1, Role: models.RoleHRManager},
			want: requested,
		},
		{
			name: "administrator keeps filter",
			who:  models.Identity{Role: models.RoleAdministrator},
			want: requested,
		},
		{
			name: "auditor keeps filter",
			who:  models.Identity{Role: models.RoleAuditor},
			want: requested,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveFilter(tt.who, requested)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// the caller's filter value is never mutated
	if *requested.EmployeeID != 999 {
		t.Fatalf("requested filter was modified: %d", *requested.EmployeeID)
	}
}

func TestEffectiveFilter_EmployeeWithoutFilter(t *testing.T) {
	got := EffectiveFilter(models.Identity{EmployeeID: 7, Role: models.RoleEmployee}, models.Filter{})
	if got.EmployeeID == nil || *got.EmployeeID != 7 {
		t.Fatalf("want employee 7, got %v", got.EmployeeID)
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		skip, limit         int
		wantSkip, wantLimit int
	}{
		{0, 0, 0, 100},
		{-3, -1, 0, 100},
		{10, 50, 10, 50},
		{0, 1000, 0, 1000},
		{0, 5000, 0, 1000},
	}
	for _, tt := range tests {
		got := Paginate(models.Filter{Skip: tt.skip, Limit: tt.limit}, 100, 1000)
		if got.Skip != tt.wantSkip || got.Limit != tt.wantLimit {
			t.Errorf("Paginate(%d,%d) = (%d,%d), want (%d,%d)",
				tt.skip, tt.limit, got.Skip, got.Limit, tt.wantSkip, tt.wantLimit)
		}
	}
}

func TestRolePermissions(t *testing.T) {
	for role, want := range map[models.Role]bool{
		models.RoleEmployee:      false,
		models.RoleAuditor:       false,
		models.RoleHRManager:     true,
		models.RoleAdministrator: true,
		models.Role("intern"):    false,
	} {
		if CanIngest(role) != want || CanDelete(role) != want {
			t.Errorf("role %q: want %v", role, want)
		}
	}
}

func TestStorageKey(t *testing.T) {
	got := StorageKey(123, models.Period{Month: 3, Year: 2024}, "abc")
	if got != "payslips/123/2024/3/abc.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}
