package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recipe-app/recipe-api/internal/platform/db"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	GetOrCreateToken(ctx context.Context, userID int64, key string) (Token, error)
	FindToken(ctx context.Context, key string) (Token, error)
	DeleteToken(ctx context.Context, userID int64) (string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, `SELECT id, email, password_hash, is_active, is_staff FROM users WHERE email = $1`, email)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findUser(ctx, `SELECT id, email, password_hash, is_active, is_staff FROM users WHERE id = $1`, id)
}

func (r *PGRepository) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsStaff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	return &u, nil
}

// GetOrCreateToken returns the user's token, inserting key when none exists yet.
func (r *PGRepository) GetOrCreateToken(ctx context.Context, userID int64, key string) (Token, error) {
	var t Token
	err := r.db.QueryRow(ctx, `INSERT INTO auth_tokens (key, user_id) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING key, user_id, created_at`, key, userID).Scan(&t.Key, &t.UserID, &t.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Token{}, fmt.Errorf("auth: create token: %w", shared.ErrDuplicate)
		}
		return Token{}, fmt.Errorf("auth: create token: %w", err)
	}
	return t, nil
}

// FindToken looks up a token by key.
func (r *PGRepository) FindToken(ctx context.Context, key string) (Token, error) {
	var t Token
	err := r.db.QueryRow(ctx, `SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`, key).Scan(&t.Key, &t.UserID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, shared.ErrNotFound
		}
		return Token{}, fmt.Errorf("auth: find token: %w", err)
	}
	return t, nil
}

// DeleteToken removes the user's token and returns its key.
func (r *PGRepository) DeleteToken(ctx context.Context, userID int64) (string, error) {
	var key string
	err := r.db.QueryRow(ctx, `DELETE FROM auth_tokens WHERE user_id = $1 RETURNING key`, userID).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("auth: delete token: %w", err)
	}
	return key, nil
}

var _ Repository = (*PGRepository)(nil)
