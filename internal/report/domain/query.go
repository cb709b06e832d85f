package domain

import (
	"context"

	"github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

const (
	// EarthRadiusKm converts a kilometer radius to the angular radius
	// used by the spherical-distance predicate. Shared by the explicit
	// and the jurisdiction filters so the two can never diverge.
	EarthRadiusKm = 6378.1

	// AdminJurisdictionRadiusKm is the implicit visibility radius
	// around an admin's jurisdiction location. A convenience default,
	// not a security boundary: an explicit geo filter overrides it.
	AdminJurisdictionRadiusKm = 5

	// FeedRadiusKm caps the citizen proximity feed.
	FeedRadiusKm = 50

	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// KmToRadians converts a kilometer distance to angular radians.
func KmToRadians(km float64) float64 {
	return km / EarthRadiusKm
}

// Intent is the purpose of a single-resource access.
type Intent string

const (
	IntentRead         Intent = "read"
	IntentMutateStatus Intent = "mutateStatus"
	IntentAddNote      Intent = "addNote"
)

// ListRequest carries the caller-supplied listing filters, before any
// authorization scoping is applied.
type ListRequest struct {
	Status         string
	Category       string
	Priority       string
	DepartmentName string

	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64

	Page     int
	PageSize int
}

// GeoFilter is a resolved spherical radius constraint.
type GeoFilter struct {
	Lng           float64
	Lat           float64
	RadiusRadians float64
}

// QuerySpec is the authoritative, fully-scoped query the store runs.
// Request parameters can narrow it; they can never widen it past the
// actor's jurisdiction.
type QuerySpec struct {
	// Empty short-circuits the store: the result set is known to be
	// empty without running a query (unresolvable department filter,
	// or a request conflicting with the actor's own departments).
	Empty bool

	Status   string
	Category string
	Priority string

	// Departments constrains assigned_department when non-nil.
	Departments []types.ID

	Geo *GeoFilter

	Limit  int
	Offset int
	Page   int
}

// PageRef points at an adjacent page in the pagination envelope.
type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination describes whether adjacent pages exist.
type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

// BuildPagination computes the next/prev references for a result page.
func BuildPagination(total, page, limit int) Pagination {
	var p Pagination
	if page*limit < total {
		p.Next = &PageRef{Page: page + 1, Limit: limit}
	}
	if page > 1 {
		p.Prev = &PageRef{Page: page - 1, Limit: limit}
	}
	return p
}

// DepartmentResolver resolves a department name to its id. A missing
// name is not an error; the engine turns it into an empty result.
type DepartmentResolver interface {
	ResolveName(ctx context.Context, name string) (types.ID, bool, error)
}

// Engine computes the authoritative query constraints for listing
// requests and decides per-resource authorization.
type Engine struct {
	departments DepartmentResolver
}

// NewEngine creates a filter engine.
func NewEngine(departments DepartmentResolver) *Engine {
	return &Engine{departments: departments}
}

// ComposeListQuery builds the QuerySpec for an actor's listing request.
// Each step narrows or rejects; the admin-scoping step cannot be
// widened by request parameters.
func (e *Engine) ComposeListQuery(ctx context.Context, actor *auth.Actor, req ListRequest) (QuerySpec, error) {
	spec := QuerySpec{}

	// Requested equality filters apply verbatim.
	spec.Status = req.Status
	spec.Category = req.Category
	spec.Priority = req.Priority

	// A department-name filter that resolves to nothing yields an
	// empty result, never an unfiltered query.
	var requested *types.ID
	if req.DepartmentName != "" {
		id, found, err := e.departments.ResolveName(ctx, req.DepartmentName)
		if err != nil {
			return QuerySpec{}, err
		}
		if !found {
			return e.emptySpec(req), nil
		}
		requested = &id
	}

	// Mandatory admin scoping. Admins are always confined to their own
	// departments; a conflicting request-level filter yields an empty
	// result rather than a merge.
	if actor.IsAdmin() {
		if len(actor.DepartmentIDs) == 0 {
			return e.emptySpec(req), nil
		}
		if requested != nil {
			if !actor.AdministersDepartment(*requested) {
				return e.emptySpec(req), nil
			}
			spec.Departments = []types.ID{*requested}
		} else {
			spec.Departments = actor.DepartmentIDs
		}
	} else if requested != nil {
		spec.Departments = []types.ID{*requested}
	}

	// Geo scoping: explicit filter wins; otherwise an admin with a
	// jurisdiction gets the implicit default radius; otherwise none.
	geo, err := resolveGeo(actor, req)
	if err != nil {
		return QuerySpec{}, err
	}
	spec.Geo = geo

	spec.Page, spec.Limit, spec.Offset = paginate(req.Page, req.PageSize)

	return spec, nil
}

// emptySpec preserves pagination so the envelope stays well-formed.
func (e *Engine) emptySpec(req ListRequest) QuerySpec {
	spec := QuerySpec{Empty: true}
	spec.Page, spec.Limit, spec.Offset = paginate(req.Page, req.PageSize)
	return spec
}

func resolveGeo(actor *auth.Actor, req ListRequest) (*GeoFilter, error) {
	explicit := req.Latitude != nil || req.Longitude != nil || req.RadiusKm != nil

	switch {
	case explicit:
		if req.Latitude == nil || req.Longitude == nil || req.RadiusKm == nil {
			return nil, errors.InvalidFilter("latitude, longitude and radius must be provided together")
		}
		lat, lng, radius := *req.Latitude, *req.Longitude, *req.RadiusKm
		if radius <= 0 {
			return nil, errors.InvalidFilter("radius must be positive")
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return nil, errors.InvalidFilter("latitude or longitude out of range")
		}
		return &GeoFilter{Lng: lng, Lat: lat, RadiusRadians: KmToRadians(radius)}, nil

	case actor.IsAdmin() && actor.Jurisdiction != nil:
		return &GeoFilter{
			Lng:           actor.Jurisdiction.Lng,
			Lat:           actor.Jurisdiction.Lat,
			RadiusRadians: KmToRadians(AdminJurisdictionRadiusKm),
		}, nil

	default:
		return nil, nil
	}
}

func paginate(page, pageSize int) (p, limit, offset int) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

// AuthorizeResourceAccess decides whether an actor may perform an
// intent on a single report. Citizens read freely and interact via
// likes and comments, but never act administratively. Admins act only
// on reports assigned to one of their departments; an unassigned
// report is administratively untouchable until assigned.
func AuthorizeResourceAccess(actor *auth.Actor, report *Report, intent Intent) error {
	switch intent {
	case IntentRead:
		if !actor.IsAdmin() {
			return nil
		}
		return requireAssignedDepartment(actor, report, "view")

	case IntentMutateStatus:
		if !actor.IsAdmin() {
			return errors.Forbidden("only department admins can change report status")
		}
		return requireAssignedDepartment(actor, report, "update")

	case IntentAddNote:
		if !actor.IsAdmin() {
			return errors.Forbidden("only department admins can add notes")
		}
		return requireAssignedDepartment(actor, report, "annotate")

	default:
		return errors.Forbidden("unknown intent")
	}
}

func requireAssignedDepartment(actor *auth.Actor, report *Report, verb string) error {
	if report.AssignedDepartment == nil {
		return errors.Forbidden("report is not assigned to a department")
	}
	if !actor.AdministersDepartment(*report.AssignedDepartment) {
		return errors.Forbidden("you are not authorized to " + verb + " this report")
	}
	return nil
}
