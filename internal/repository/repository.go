package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/userauth/internal/models"
)

// User repository interface
// Email is expected to be normalized already (trimmed, lower-cased)
type UserRepo interface {
	// Create user
	// If user with email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Overwrite stored refresh token, whatever it was
	// If user not found must return apperrors.ErrUserNotFound
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error

	// Replace stored refresh token only if it still equals 'current'
	// Has to be a single atomic compare-and-swap: must return apperrors.ErrRefreshTokenMismatch otherwise
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, current string, next string) error

	// Remove stored refresh token
	// If user not found must return apperrors.ErrUserNotFound
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
}

type Storage interface {
	User() UserRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
