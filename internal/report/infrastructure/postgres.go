// Package infrastructure implements the report repository on PostgreSQL.
package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicgrid/platform/internal/report/domain"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// sphereDistance is the great-circle distance in radians between a row's
// location and a bound point. Compared directly against the angular
// radius (kilometers divided by Earth's radius).
const sphereDistance = `acos(least(1.0, greatest(-1.0,
	sin(radians(%[1]s)) * sin(radians(location_lat)) +
	cos(radians(%[1]s)) * cos(radians(location_lat)) * cos(radians(location_lng) - radians(%[2]s)))))`

const reportColumns = `id, title, description, category,
	location_lng, location_lat, status, priority,
	author_id, assigned_department, likes, like_count, images,
	created_at, updated_at`

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save inserts a new report
func (r *PostgresRepository) Save(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO reports (
			id, title, description, category,
			location_lng, location_lat, status, priority,
			author_id, assigned_department, likes, like_count, images,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	likes := idStrings(report.Likes)
	images := report.Images
	if images == nil {
		images = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		report.ID, report.Title, report.Description, report.Category,
		report.Location.Lng, report.Location.Lat, report.Status, report.Priority,
		report.AuthorID, report.AssignedDepartment, likes, report.LikeCount, images,
		report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save report")
	}

	return nil
}

// FindByID loads a report with its notes and comments
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("report", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find report")
	}

	notes, err := r.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Notes = notes

	comments, err := r.listComments(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Comments = comments

	return report, nil
}

// List executes a composed QuerySpec
func (r *PostgresRepository) List(ctx context.Context, spec domain.QuerySpec) ([]domain.Report, int, error) {
	if spec.Empty {
		return []domain.Report{}, 0, nil
	}

	var conditions []string
	var args []interface{}
	argNum := 1

	if spec.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, spec.Status)
		argNum++
	}

	if spec.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, spec.Category)
		argNum++
	}

	if spec.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argNum))
		args = append(args, spec.Priority)
		argNum++
	}

	if spec.Departments != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_department = ANY($%d::uuid[])", argNum))
		args = append(args, idStrings(spec.Departments))
		argNum++
	}

	if spec.Geo != nil {
		predicate := fmt.Sprintf(sphereDistance, fmt.Sprintf("$%d", argNum), fmt.Sprintf("$%d", argNum+1))
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", predicate, argNum+2))
		args = append(args, spec.Geo.Lat, spec.Geo.Lng, spec.Geo.RadiusRadians)
		argNum += 3
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM reports %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count reports")
	}

	// Stable order so pages never overlap or skip rows.
	query := fmt.Sprintf(`
		SELECT %s
		FROM reports
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, reportColumns, whereClause, argNum, argNum+1)

	args = append(args, spec.Limit, spec.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list reports")
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	if err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

// UpdateStatus persists a transition with a compare-and-set on the
// from-status so concurrent transitions cannot both win.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id types.ID, from, to domain.Status) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE reports SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update report status")
	}

	if result.RowsAffected() == 0 {
		// Either the report is gone or the status already moved.
		var current string
		err := r.pool.QueryRow(ctx, `SELECT status FROM reports WHERE id = $1`, id).Scan(&current)
		if err == pgx.ErrNoRows {
			return errors.NotFound("report", id.String())
		}
		if err != nil {
			return errors.Wrap(err, "failed to check report status")
		}
		return errors.InvalidTransition(current, string(to))
	}

	return nil
}

// AddNote appends a note row
func (r *PostgresRepository) AddNote(ctx context.Context, note *domain.Note) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO report_notes (id, report_id, author_id, text, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.ReportID, note.AuthorID, note.Text, note.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add note")
	}
	return nil
}

// AddComment appends a comment row
func (r *PostgresRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO report_comments (id, report_id, author_id, text, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		comment.ID, comment.ReportID, comment.AuthorID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add comment")
	}
	return nil
}

// ToggleLike flips like membership and recomputes like_count in one
// statement. Both CASE expressions see the same row version, so the
// count can never drift from the set.
func (r *PostgresRepository) ToggleLike(ctx context.Context, reportID, actorID types.ID) (*domain.Report, error) {
	query := `
		UPDATE reports SET
			likes = CASE WHEN $2::uuid = ANY(likes)
				THEN array_remove(likes, $2::uuid)
				ELSE array_append(likes, $2::uuid) END,
			like_count = cardinality(CASE WHEN $2::uuid = ANY(likes)
				THEN array_remove(likes, $2::uuid)
				ELSE array_append(likes, $2::uuid) END),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + reportColumns

	report, err := scanReport(r.pool.QueryRow(ctx, query, reportID, actorID.String()))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("report", reportID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to toggle like")
	}

	return report, nil
}

// Nearest returns reports within the radius, closest first
func (r *PostgresRepository) Nearest(ctx context.Context, center types.Point, radiusRadians float64, limit int) ([]domain.Report, error) {
	predicate := fmt.Sprintf(sphereDistance, "$1", "$2")

	query := fmt.Sprintf(`
		SELECT %s
		FROM reports
		WHERE %s <= $3
		ORDER BY %s ASC, created_at DESC
		LIMIT $4`, reportColumns, predicate, predicate)

	rows, err := r.pool.Query(ctx, query, center.Lat, center.Lng, radiusRadians, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query nearest reports")
	}
	defer rows.Close()

	return collectReports(rows)
}

// ListByAuthor returns a user's own reports, newest first
func (r *PostgresRepository) ListByAuthor(ctx context.Context, authorID types.ID) ([]domain.Report, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM reports
		WHERE author_id = $1
		ORDER BY created_at DESC, id DESC`, reportColumns)

	rows, err := r.pool.Query(ctx, query, authorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reports by author")
	}
	defer rows.Close()

	return collectReports(rows)
}

// ListNotes returns a report's notes in insertion order
func (r *PostgresRepository) ListNotes(ctx context.Context, reportID types.ID) ([]domain.Note, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, report_id, author_id, text, created_at
		 FROM report_notes WHERE report_id = $1 ORDER BY created_at, id`,
		reportID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.ReportID, &n.AuthorID, &n.Text, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		notes = append(notes, n)
	}

	return notes, nil
}

func (r *PostgresRepository) listComments(ctx context.Context, reportID types.ID) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, report_id, author_id, text, created_at
		 FROM report_comments WHERE report_id = $1 ORDER BY created_at, id`,
		reportID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list comments")
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan comment")
		}
		comments = append(comments, c)
	}

	return comments, nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	report := &domain.Report{}
	var likes []string
	var assigned *string

	err := row.Scan(
		&report.ID, &report.Title, &report.Description, &report.Category,
		&report.Location.Lng, &report.Location.Lat, &report.Status, &report.Priority,
		&report.AuthorID, &assigned, &likes, &report.LikeCount, &report.Images,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assigned != nil {
		id := types.ID(*assigned)
		report.AssignedDepartment = &id
	}
	report.Likes = make([]types.ID, 0, len(likes))
	for _, l := range likes {
		report.Likes = append(report.Likes, types.ID(l))
	}

	return report, nil
}

func collectReports(rows pgx.Rows) ([]domain.Report, error) {
	var reports []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan report")
		}
		reports = append(reports, *report)
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	return reports, nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
