package domain

import (
	"context"

	"github.com/civicgrid/platform/internal/shared/types"
)

// Repository defines the persistence interface for reports.
type Repository interface {
	Save(ctx context.Context, r *Report) error
	FindByID(ctx context.Context, id types.ID) (*Report, error)

	// List executes a composed QuerySpec, returning the page of reports
	// and the total match count. Results are ordered by creation time
	// descending with id as the tiebreak so pagination is stable.
	List(ctx context.Context, spec QuerySpec) ([]Report, int, error)

	// UpdateStatus persists a transition with a compare-and-set on the
	// from-status. When the report exists but its status already moved,
	// it returns the InvalidTransitionError the loser of the race must
	// see.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) error

	AddNote(ctx context.Context, note *Note) error
	AddComment(ctx context.Context, comment *Comment) error

	// ToggleLike flips the actor's membership in the like set and
	// recomputes like_count atomically in a single statement, then
	// returns the updated report.
	ToggleLike(ctx context.Context, reportID, actorID types.ID) (*Report, error)

	// Nearest returns reports within the angular radius of a point,
	// closest first. Used by the citizen feed.
	Nearest(ctx context.Context, center types.Point, radiusRadians float64, limit int) ([]Report, error)

	// ListByAuthor returns all reports submitted by one user, newest
	// first. Used by the profile endpoint.
	ListByAuthor(ctx context.Context, authorID types.ID) ([]Report, error)

	ListNotes(ctx context.Context, reportID types.ID) ([]Note, error)
}
