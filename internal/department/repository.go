package department

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Repository provides database operations for departments
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new department repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new department
func (r *Repository) Create(ctx context.Context, d *Department) error {
	query := `
		INSERT INTO departments (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, d.ID, d.Name, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("department with this name already exists")
		}
		return errors.Wrap(err, "failed to create department")
	}

	return nil
}

// FindByID retrieves a department by id
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*Department, error) {
	query := `SELECT id, name, created_at, updated_at FROM departments WHERE id = $1`

	d := &Department{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("department", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find department")
	}

	return d, nil
}

// FindByName retrieves a department by its unique name
func (r *Repository) FindByName(ctx context.Context, name string) (*Department, error) {
	query := `SELECT id, name, created_at, updated_at FROM departments WHERE name = $1`

	d := &Department{}
	err := r.pool.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("department", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find department by name")
	}

	return d, nil
}

// List returns all departments
func (r *Repository) List(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list departments")
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan department")
		}
		departments = append(departments, d)
	}

	return departments, nil
}
