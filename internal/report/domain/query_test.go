package domain

import (
	"context"
	"math"
	"testing"

	"github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// fakeResolver maps department names to ids in memory.
type fakeResolver struct {
	byName map[string]types.ID
}

func (f *fakeResolver) ResolveName(_ context.Context, name string) (types.ID, bool, error) {
	id, ok := f.byName[name]
	return id, ok, nil
}

func citizen() *auth.Actor {
	return &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}
}

func admin(departments ...types.ID) *auth.Actor {
	return &auth.Actor{
		ID:            types.NewID(),
		Role:          auth.RoleDepartmentAdmin,
		DepartmentIDs: departments,
	}
}

// TestComposeListQueryAdminScoping verifies admins are always confined
// to their own departments.
func TestComposeListQueryAdminScoping(t *testing.T) {
	roads := types.NewID()
	parks := types.NewID()
	water := types.NewID()

	engine := NewEngine(&fakeResolver{byName: map[string]types.ID{
		"Roads": roads,
		"Parks": parks,
		"Water": water,
	}})

	tests := []struct {
		name            string
		actor           *auth.Actor
		department      string
		wantEmpty       bool
		wantDepartments []types.ID
	}{
		{"No filter scopes to own departments", admin(roads, parks), "", false, []types.ID{roads, parks}},
		{"Administered filter narrows", admin(roads, parks), "Parks", false, []types.ID{parks}},
		{"Foreign department yields empty", admin(roads), "Water", true, nil},
		{"Unknown department yields empty", admin(roads), "Sewage", true, nil},
		{"Admin without departments yields empty", admin(), "", true, nil},
		{"Citizen is unscoped", citizen(), "", false, nil},
		{"Citizen filter applies verbatim", citizen(), "Water", false, []types.ID{water}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := engine.ComposeListQuery(context.Background(), tt.actor, ListRequest{
				DepartmentName: tt.department,
			})
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			if spec.Empty != tt.wantEmpty {
				t.Fatalf("Empty = %v, want %v", spec.Empty, tt.wantEmpty)
			}
			if tt.wantEmpty {
				return
			}

			if len(spec.Departments) != len(tt.wantDepartments) {
				t.Fatalf("Departments = %v, want %v", spec.Departments, tt.wantDepartments)
			}
			for i, id := range tt.wantDepartments {
				if spec.Departments[i] != id {
					t.Errorf("Departments[%d] = %s, want %s", i, spec.Departments[i], id)
				}
			}
		})
	}
}

// TestComposeListQueryEmptyKeepsPagination verifies the empty
// short-circuit still carries a usable page shape.
func TestComposeListQueryEmptyKeepsPagination(t *testing.T) {
	engine := NewEngine(&fakeResolver{byName: map[string]types.ID{}})

	spec, err := engine.ComposeListQuery(context.Background(), citizen(), ListRequest{
		DepartmentName: "Nonexistent",
		Page:           3,
		PageSize:       20,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !spec.Empty {
		t.Fatal("Expected empty spec for unresolvable department")
	}
	if spec.Page != 3 || spec.Limit != 20 || spec.Offset != 40 {
		t.Errorf("Pagination = page %d limit %d offset %d", spec.Page, spec.Limit, spec.Offset)
	}
}

// TestComposeListQueryGeo covers the geo filter precedence rules.
func TestComposeListQueryGeo(t *testing.T) {
	engine := NewEngine(&fakeResolver{byName: map[string]types.ID{}})
	dept := types.NewID()

	lat, lng, radius := 44.7866, 20.4489, 10.0

	adminWithHome := admin(dept)
	adminWithHome.Jurisdiction = &types.Point{Lng: 20.5, Lat: 44.8}

	t.Run("Explicit filter", func(t *testing.T) {
		spec, err := engine.ComposeListQuery(context.Background(), citizen(), ListRequest{
			Latitude: &lat, Longitude: &lng, RadiusKm: &radius,
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if spec.Geo == nil {
			t.Fatal("Expected geo filter")
		}
		want := 10.0 / EarthRadiusKm
		if math.Abs(spec.Geo.RadiusRadians-want) > 1e-12 {
			t.Errorf("RadiusRadians = %v, want %v", spec.Geo.RadiusRadians, want)
		}
	})

	t.Run("Explicit overrides jurisdiction", func(t *testing.T) {
		spec, err := engine.ComposeListQuery(context.Background(), adminWithHome, ListRequest{
			Latitude: &lat, Longitude: &lng, RadiusKm: &radius,
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if spec.Geo == nil || spec.Geo.Lat != lat || spec.Geo.Lng != lng {
			t.Errorf("Expected explicit center, got %+v", spec.Geo)
		}
	})

	t.Run("Admin jurisdiction default", func(t *testing.T) {
		spec, err := engine.ComposeListQuery(context.Background(), adminWithHome, ListRequest{})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if spec.Geo == nil {
			t.Fatal("Expected implicit jurisdiction filter")
		}
		if spec.Geo.Lat != 44.8 || spec.Geo.Lng != 20.5 {
			t.Errorf("Expected jurisdiction center, got %+v", spec.Geo)
		}
		want := float64(AdminJurisdictionRadiusKm) / EarthRadiusKm
		if math.Abs(spec.Geo.RadiusRadians-want) > 1e-12 {
			t.Errorf("RadiusRadians = %v, want %v", spec.Geo.RadiusRadians, want)
		}
	})

	t.Run("Citizen has no implicit filter", func(t *testing.T) {
		spec, err := engine.ComposeListQuery(context.Background(), citizen(), ListRequest{})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if spec.Geo != nil {
			t.Errorf("Expected no geo filter, got %+v", spec.Geo)
		}
	})

	negative := -1.0
	outOfRange := 95.0

	invalid := []struct {
		name string
		req  ListRequest
	}{
		{"Latitude alone", ListRequest{Latitude: &lat}},
		{"Missing radius", ListRequest{Latitude: &lat, Longitude: &lng}},
		{"Non-positive radius", ListRequest{Latitude: &lat, Longitude: &lng, RadiusKm: &negative}},
		{"Latitude out of range", ListRequest{Latitude: &outOfRange, Longitude: &lng, RadiusKm: &radius}},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ComposeListQuery(context.Background(), citizen(), tt.req)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			appErr, ok := err.(*errors.AppError)
			if !ok || appErr.Code != "INVALID_FILTER" {
				t.Errorf("Expected INVALID_FILTER, got %v", err)
			}
		})
	}
}

// TestPaginate tests page normalization
func TestPaginate(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		pageSize   int
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"Defaults", 0, 0, 1, 10, 0},
		{"Negative values", -3, -1, 1, 10, 0},
		{"Second page", 2, 10, 2, 10, 10},
		{"Capped limit", 1, 500, 1, 100, 0},
		{"Deep page", 5, 25, 5, 25, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit, offset := paginate(tt.page, tt.pageSize)
			if page != tt.wantPage || limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("paginate(%d, %d) = (%d, %d, %d), want (%d, %d, %d)",
					tt.page, tt.pageSize, page, limit, offset,
					tt.wantPage, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

// TestBuildPagination tests next/prev references
func TestBuildPagination(t *testing.T) {
	p := BuildPagination(35, 2, 10)
	if p.Next == nil || p.Next.Page != 3 {
		t.Errorf("Expected next page 3, got %+v", p.Next)
	}
	if p.Prev == nil || p.Prev.Page != 1 {
		t.Errorf("Expected prev page 1, got %+v", p.Prev)
	}

	p = BuildPagination(10, 1, 10)
	if p.Next != nil || p.Prev != nil {
		t.Errorf("Expected single page, got %+v", p)
	}
}

// TestAuthorizeResourceAccess covers the intent/role/assignment matrix.
func TestAuthorizeResourceAccess(t *testing.T) {
	roads := types.NewID()
	parks := types.NewID()

	assigned := &Report{ID: types.NewID(), AssignedDepartment: &roads}
	unassigned := &Report{ID: types.NewID()}

	tests := []struct {
		name      string
		actor     *auth.Actor
		report    *Report
		intent    Intent
		wantAllow bool
	}{
		{"Citizen reads anything", citizen(), assigned, IntentRead, true},
		{"Citizen reads unassigned", citizen(), unassigned, IntentRead, true},
		{"Citizen cannot mutate status", citizen(), assigned, IntentMutateStatus, false},
		{"Citizen cannot add notes", citizen(), assigned, IntentAddNote, false},
		{"Admin reads own department", admin(roads), assigned, IntentRead, true},
		{"Admin cannot read foreign department", admin(parks), assigned, IntentRead, false},
		{"Admin cannot read unassigned", admin(roads), unassigned, IntentRead, false},
		{"Admin mutates own department", admin(roads), assigned, IntentMutateStatus, true},
		{"Admin cannot mutate foreign department", admin(parks), assigned, IntentMutateStatus, false},
		{"Admin cannot mutate unassigned", admin(roads), unassigned, IntentMutateStatus, false},
		{"Admin annotates own department", admin(roads), assigned, IntentAddNote, true},
		{"Admin cannot annotate unassigned", admin(parks), unassigned, IntentAddNote, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeResourceAccess(tt.actor, tt.report, tt.intent)
			if tt.wantAllow && err != nil {
				t.Errorf("Expected allow, got %v", err)
			}
			if !tt.wantAllow && err == nil {
				t.Error("Expected deny but access was allowed")
			}
		})
	}
}

// TestKmToRadians pins the conversion constant
func TestKmToRadians(t *testing.T) {
	if got := KmToRadians(EarthRadiusKm); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("KmToRadians(EarthRadiusKm) = %v, want 1", got)
	}
	if got := KmToRadians(5); math.Abs(got-5.0/6378.1) > 1e-12 {
		t.Errorf("KmToRadians(5) = %v", got)
	}
}
