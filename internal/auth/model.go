// Package auth implements user accounts, credential verification and
// session token issuance.
package auth

import (
	"time"

	"github.com/civicgrid/platform/internal/shared/types"
)

// User is a registered account. Citizens have no departments; admins
// administer one or more and carry a jurisdiction location.
type User struct {
	ID            types.ID     `json:"id"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	PasswordHash  string       `json:"-"`
	Role          string       `json:"role"`
	DepartmentIDs []types.ID   `json:"department_ids,omitempty"`
	Location      *types.Point `json:"location,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
