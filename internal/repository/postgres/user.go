package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, email, password_hash, refresh_token, created_at, updated_at`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error) {
	user, err := r.queryUser(ctx, createUser, uuid.New(), email, hashedPassword)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := r.queryUser(ctx, getUserByID, id)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := r.queryUser(ctx, getUserByEmail, email)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const setRefreshToken = `-- name: SetRefreshToken
UPDATE users
SET refresh_token = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.DB.Exec(ctx, setRefreshToken, id, token)
	return affectedOne(tag, err, apperrors.ErrUserNotFound)
}

const rotateRefreshToken = `-- name: RotateRefreshToken
UPDATE users
SET refresh_token = $3, updated_at = now()
WHERE id = $1 AND refresh_token = $2
`

// Compare and swap in one statement: concurrent rotation or logout makes it affect no rows
func (r *UserRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, current string, next string) error {
	tag, err := r.DB.Exec(ctx, rotateRefreshToken, id, current, next)
	return affectedOne(tag, err, apperrors.ErrRefreshTokenMismatch)
}

const clearRefreshToken = `-- name: ClearRefreshToken
UPDATE users
SET refresh_token = NULL, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, clearRefreshToken, id)
	return affectedOne(tag, err, apperrors.ErrUserNotFound)
}

func (r *UserRepo) queryUser(ctx context.Context, query string, args ...any) (models.User, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.User{}, err
	}
	return pgx.CollectOneRow(rows, rowToUser)
}

func affectedOne(tag pgconn.CommandTag, err error, notAffected error) error {
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return notAffected
	default:
		return nil
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
