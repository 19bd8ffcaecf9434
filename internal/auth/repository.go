package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

const userColumns = `id, email, password_hash, display_name, role, permissions, is_active, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var perms []string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.Role, &perms, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		u.Permissions = append(u.Permissions, models.Permission(p))
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.Classify("users.get", err)
	}
	return u, nil
}

// GetByEmail returns a user by email, compared case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, apperr.Classify("users.get_by_email", err)
	}
	return u, nil
}

// List returns all users for the admin screen.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name, email`)
	if err != nil {
		return nil, apperr.Classify("users.list", err)
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Classify("users.list", err)
		}
		list = append(list, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Classify("users.list", err)
	}
	return list, nil
}

// Create inserts a new user. A taken email is a conflict.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, displayName, string(role)))
	if err != nil {
		return nil, apperr.Classify("users.create", err)
	}
	return u, nil
}

// UpdateRole changes a user's role and extra grants.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, perms []models.Permission) (*models.User, error) {
	grants := make([]string, 0, len(perms))
	for _, p := range perms {
		grants = append(grants, string(p))
	}
	const q = `UPDATE users SET role = $2, permissions = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, string(role), grants))
	if err != nil {
		return nil, apperr.Classify("users.update_role", err)
	}
	return u, nil
}

// SetActive enables or disables a user account.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return apperr.Classify("users.set_active", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("users.set_active", "user not found")
	}
	return nil
}
