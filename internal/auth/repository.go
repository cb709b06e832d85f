package auth

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Repository provides database operations for user accounts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new user repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user
func (r *Repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role,
			department_ids, location_lng, location_lat,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var lng, lat *float64
	if u.Location != nil {
		lng, lat = &u.Location.Lng, &u.Location.Lat
	}

	departments := make([]string, 0, len(u.DepartmentIDs))
	for _, d := range u.DepartmentIDs {
		departments = append(departments, d.String())
	}

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
		departments, lng, lat,
		u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("user with this email or username already exists")
		}
		return errors.Wrap(err, "failed to create user")
	}

	return nil
}

// FindByEmail retrieves a user by email
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindByID retrieves a user by id
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, role,
			department_ids, location_lng, location_lat,
			created_at, updated_at
		FROM users ` + where

	u := &User{}
	var departments []string
	var lng, lat *float64

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&departments, &lng, &lat,
		&u.CreatedAt, &u.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", "")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	for _, d := range departments {
		u.DepartmentIDs = append(u.DepartmentIDs, types.ID(d))
	}
	if lng != nil && lat != nil {
		u.Location = &types.Point{Lng: *lng, Lat: *lat}
	}

	return u, nil
}
