package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Unknown email and wrong password are intentionally the same error
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("password does not match")

	// Returned for any refresh credential that can't be used to mint a new pair
	ErrUnauthorized = errors.New("unauthorized")

	ErrTokenExpired    = errors.New("token is expired")
	ErrTokenMalformed  = errors.New("token is malformed")
	ErrTokenWrongClass = errors.New("token has unexpected class")

	// Stored refresh token differs from the presented one (rotated, cleared or never issued)
	ErrRefreshTokenMismatch = errors.New("refresh token does not match stored one")
)
