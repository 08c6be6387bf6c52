package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cscportal/portal-backend/internal/auth/domain"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/errors"
)

const userColumns = `id, name, email, phone, password_hash, role, created_at, updated_at`

// UserRepository handles user persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A duplicate email is a conflict.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, name, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Name, user.Email, user.Phone, user.PasswordHash, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("user")
	}

	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail gets a user by email, ignoring case
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every user, oldest first
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users := []*domain.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	return users, nil
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(result, "user")
}

// UpdateRole changes a user's role and returns the updated user
func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("user")
	}

	var user domain.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, role)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func requireAffected(result sql.Result, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(resource)
	}
	return nil
}
