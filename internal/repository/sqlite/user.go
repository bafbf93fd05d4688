package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/models"
)

// Timestamps are stored as unix microseconds
type UserRepo struct {
	DB querier
}

const userColumns = `id, email, password_hash, refresh_token, created_at, updated_at`

const createUser = `
INSERT INTO users (id, email, password_hash, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, ?4)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error) {
	row := r.DB.QueryRowContext(ctx, createUser, uuid.New(), email, hashedPassword, now())
	user, err := scanUser(row)

	if err != nil {
		if isUniqueViolation(err) {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?1`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.getUser(ctx, getUserByID, id)
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?1`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getUser(ctx, getUserByEmail, email)
}

const setRefreshToken = `UPDATE users SET refresh_token = ?2, updated_at = ?3 WHERE id = ?1`

func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	result, err := r.DB.ExecContext(ctx, setRefreshToken, id, token, now())
	return affectedOne(result, err, apperrors.ErrUserNotFound)
}

const rotateRefreshToken = `
UPDATE users SET refresh_token = ?3, updated_at = ?4
WHERE id = ?1 AND refresh_token = ?2`

func (r *UserRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, current string, next string) error {
	result, err := r.DB.ExecContext(ctx, rotateRefreshToken, id, current, next, now())
	return affectedOne(result, err, apperrors.ErrRefreshTokenMismatch)
}

const clearRefreshToken = `UPDATE users SET refresh_token = NULL, updated_at = ?2 WHERE id = ?1`

func (r *UserRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	result, err := r.DB.ExecContext(ctx, clearRefreshToken, id, now())
	return affectedOne(result, err, apperrors.ErrUserNotFound)
}

func (r *UserRepo) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, sql.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func scanUser(row *sql.Row) (models.User, error) {
	var (
		u         models.User
		refresh   sql.NullString
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &refresh, &createdAt, &updatedAt)
	if err != nil {
		return models.User{}, err
	}

	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	u.CreatedAt = time.UnixMicro(createdAt).UTC()
	u.UpdatedAt = time.UnixMicro(updatedAt).UTC()

	return u, nil
}

func affectedOne(result sql.Result, err error, notAffected error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	count, err := result.RowsAffected()
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case count == 0:
		return notAffected
	default:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr interface{ Code() int }
	if !errors.As(err, &sqliteErr) {
		return false
	}

	// Primary result code is reported when extended codes are turned off
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "UNIQUE"))
}

func now() int64 {
	return time.Now().UnixMicro()
}
