package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/userauth/internal/apperrors"
)

// Bcrypt password hasher
// Will be used as default one if user not provide it's own
//
// Password is sha256 digested before bcrypt: bcrypt ignores input longer than 72 bytes
type BcryptHasher struct {
	// Work factor, bcrypt.DefaultCost if zero
	Cost int
}

func (h BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	return runCtx(ctx, func() (string, error) {
		sum := sha256.Sum256([]byte(password))
		hash, err := bcrypt.GenerateFromPassword(sum[:], h.cost())
		return string(hash), err
	})
}

// Compare returns apperrors.ErrPasswordMismatch if password is wrong
// Any other error means hash is broken or comparison was interrupted
func (h BcryptHasher) Compare(ctx context.Context, hashedPassword string, password string) error {
	_, err := runCtx(ctx, func() (struct{}, error) {
		sum := sha256.Sum256([]byte(password))
		return struct{}{}, bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return apperrors.ErrPasswordMismatch
	default:
		return fmt.Errorf("error while comparing password hash. Err: %w", err)
	}
}

func (h BcryptHasher) cost() int {
	if h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

// Bcrypt is not interruptible, so it runs aside and the caller stops waiting on context done
func runCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
