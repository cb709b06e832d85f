package domain

import (
	"fmt"
	"time"

	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
	StatusClosed     Status = "Closed"
)

// Priority is the AI-derived urgency of a report.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// DefaultCategory is assigned when neither the citizen nor the
// classifier provides one.
const DefaultCategory = "General"

// transitions is the strict allowed-transition table. Anything not
// listed is rejected. Closed is terminal.
var transitions = map[Status][]Status{
	StatusNew:        {StatusInProgress},
	StatusInProgress: {StatusResolved, StatusRejected},
	StatusResolved:   {StatusClosed},
	StatusRejected:   {StatusClosed},
	StatusClosed:     {},
}

// ParseStatus validates a wire status string.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

// CanTransition reports whether from→to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Note is an administrative annotation on a report. Append-only.
type Note struct {
	ID        types.ID  `json:"id"`
	ReportID  types.ID  `json:"report_id"`
	AuthorID  types.ID  `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a public remark by any authenticated actor. Append-only.
type Comment struct {
	ID        types.ID  `json:"id"`
	ReportID  types.ID  `json:"report_id"`
	AuthorID  types.ID  `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is the aggregate root for a citizen-submitted issue.
type Report struct {
	ID          types.ID    `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Location    types.Point `json:"location"`
	Status      Status      `json:"status"`
	Priority    Priority    `json:"priority"`

	AuthorID           types.ID  `json:"author_id"`
	AssignedDepartment *types.ID `json:"assigned_department,omitempty"`

	// LikeCount is always |Likes|; enforced on every mutation, never
	// incremented independently.
	Likes     []types.ID `json:"likes"`
	LikeCount int        `json:"like_count"`

	Images   []string  `json:"images,omitempty"`
	Notes    []Note    `json:"notes,omitempty"`
	Comments []Comment `json:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReport creates a report with validation. Classification output is
// applied by the caller after construction.
func NewReport(title, description, category string, location types.Point, authorID types.ID) (*Report, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if authorID.IsZero() {
		return nil, fmt.Errorf("author is required")
	}
	if err := location.Validate(); err != nil {
		return nil, fmt.Errorf("invalid location: %w", err)
	}

	if category == "" {
		category = DefaultCategory
	}

	now := time.Now()
	return &Report{
		ID:          types.NewID(),
		Title:       title,
		Description: description,
		Category:    category,
		Location:    location,
		Status:      StatusNew,
		Priority:    PriorityMedium,
		AuthorID:    authorID,
		Likes:       []types.ID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TransitionTo applies a status change if the transition table allows
// it. The caller is responsible for the authorization check.
func (r *Report) TransitionTo(to Status) error {
	if !CanTransition(r.Status, to) {
		return errors.InvalidTransition(string(r.Status), string(to))
	}

	r.Status = to
	r.UpdatedAt = time.Now()
	return nil
}

// ToggleLike adds the actor to the like set if absent, removes it if
// present, and recomputes LikeCount from the set in the same step.
// Returns whether the actor likes the report afterwards.
func (r *Report) ToggleLike(actorID types.ID) bool {
	liked := false
	for i, id := range r.Likes {
		if id == actorID {
			r.Likes = append(r.Likes[:i], r.Likes[i+1:]...)
			liked = true
			break
		}
	}
	if !liked {
		r.Likes = append(r.Likes, actorID)
	}

	r.LikeCount = len(r.Likes)
	r.UpdatedAt = time.Now()
	return !liked
}

// AddNote appends an administrative note.
func (r *Report) AddNote(authorID types.ID, text string) (*Note, error) {
	if text == "" {
		return nil, fmt.Errorf("note text is required")
	}

	note := Note{
		ID:        types.NewID(),
		ReportID:  r.ID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	r.Notes = append(r.Notes, note)
	r.UpdatedAt = note.CreatedAt
	return &note, nil
}

// AddComment appends a public comment.
func (r *Report) AddComment(authorID types.ID, text string) (*Comment, error) {
	if text == "" {
		return nil, fmt.Errorf("comment text is required")
	}

	comment := Comment{
		ID:        types.NewID(),
		ReportID:  r.ID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	r.Comments = append(r.Comments, comment)
	r.UpdatedAt = comment.CreatedAt
	return &comment, nil
}
