// Package department manages the departments reports are routed to.
package department

import (
	"time"

	"github.com/civicgrid/platform/internal/shared/types"
)

// Department is an organizational unit that reports are assigned to.
type Department struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
