// Package auth provides the request identity model and JWT middleware.
package auth

import (
	"fmt"

	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Role is the actor's role in the system.
type Role string

const (
	RoleCitizen         Role = "citizen"
	RoleDepartmentAdmin Role = "departmentAdmin"
)

// Actor is the authenticated identity behind a request. It is
// reconstructed fresh from the verified token on every request and
// never persisted.
type Actor struct {
	ID   types.ID
	Role Role

	// DepartmentIDs is the set of departments this actor administers.
	// Empty for citizens.
	DepartmentIDs []types.ID

	// Jurisdiction is the admin's home location, used to derive the
	// implicit visibility radius. Nil for citizens.
	Jurisdiction *types.Point
}

// ActorFromClaims builds an Actor from verified token claims. A legacy
// single department_id claim is folded into the department set.
func ActorFromClaims(c *Claims) (*Actor, error) {
	id, err := types.ParseID(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	role := Role(c.Role)
	switch role {
	case RoleCitizen, RoleDepartmentAdmin:
	case "":
		role = RoleCitizen
	default:
		return nil, fmt.Errorf("unknown role %q", c.Role)
	}

	var departments []types.ID
	for _, raw := range c.DepartmentIDs {
		deptID, err := types.ParseID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid department id: %w", err)
		}
		departments = append(departments, deptID)
	}
	if len(departments) == 0 && c.DepartmentID != "" {
		deptID, err := types.ParseID(c.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("invalid department id: %w", err)
		}
		departments = append(departments, deptID)
	}

	return &Actor{
		ID:            id,
		Role:          role,
		DepartmentIDs: departments,
		Jurisdiction:  c.Location,
	}, nil
}

// IsAdmin reports whether the actor is a department admin.
func (a *Actor) IsAdmin() bool {
	return a.Role == RoleDepartmentAdmin
}

// AdministersDepartment reports whether the given department is in the
// actor's administered set.
func (a *Actor) AdministersDepartment(id types.ID) bool {
	for _, d := range a.DepartmentIDs {
		if d == id {
			return true
		}
	}
	return false
}

// RequireAdmin is the pure authorization gate for admin-only operations.
// It has no side effects and is safe to call repeatedly.
func (a *Actor) RequireAdmin() error {
	if !a.IsAdmin() {
		return errors.Forbidden("department admin role required")
	}
	return nil
}
