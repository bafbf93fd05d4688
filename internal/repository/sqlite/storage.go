// Package sqlite keeps identities in sqlite database (modernc driver, no cgo).
// Useful for local runs and tests; production deployments are expected to use postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nkiryanov/userauth/internal/repository"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage struct {
	db *sql.DB

	// Either db itself or running transaction
	q    querier
	inTx bool
}

func NewStorage(db *sql.DB) repository.Storage {
	return &Storage{db: db, q: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.q}
}

// Nested calls reuse the running transaction: sqlite has no cheap savepoints through database/sql
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Storage{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}
	committed = true

	return nil
}
