package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recipe-app/recipe-api/internal/platform/db"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, user User) (User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

const userColumns = `id, email, password_hash, name, is_active, is_staff, is_superuser, created_at, updated_at`

// Create inserts a user and returns it with generated fields populated.
func (r *PGRepository) Create(ctx context.Context, user User) (User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (email, password_hash, name, is_active, is_staff, is_superuser)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+userColumns,
		user.Email, user.PasswordHash, user.Name, user.IsActive, user.IsStaff, user.IsSuperuser)
	created, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, fmt.Errorf("users: create: %w", shared.ErrDuplicate)
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return created, nil
}

// Get fetches a user by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return User{}, mapNotFound("get", err)
	}
	return user, nil
}

// GetByEmail fetches a user by normalized email.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return User{}, mapNotFound("get by email", err)
	}
	return user, nil
}

// Update writes the mutable profile columns.
func (r *PGRepository) Update(ctx context.Context, user User) (User, error) {
	row := r.db.QueryRow(ctx, `UPDATE users
SET email = $2, password_hash = $3, name = $4, is_active = $5, is_staff = $6, is_superuser = $7, updated_at = NOW()
WHERE id = $1
RETURNING `+userColumns,
		user.ID, user.Email, user.PasswordHash, user.Name, user.IsActive, user.IsStaff, user.IsSuperuser)
	updated, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, fmt.Errorf("users: update: %w", shared.ErrDuplicate)
		}
		return User{}, mapNotFound("update", err)
	}
	return updated, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func mapNotFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("users: %s: %w", op, shared.ErrNotFound)
	}
	return fmt.Errorf("users: %s: %w", op, err)
}

var _ Repository = (*PGRepository)(nil)
