package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

const (
	uniqueViolation = "23505"
	// serialization_failure surfaces when two writers race on the same key
	// under stricter isolation levels.
	serializationFailure = "40001"
)

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork returns a domain.UnitOfWork backed by database transactions.
func NewUnitOfWork(db *sql.DB) domain.UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Do(ctx context.Context, fn func(repos domain.Repositories) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(domain.Repositories{
		Users:         NewUserRepository(tx),
		IdentityLinks: NewIdentityLinkRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

// translate maps driver errors onto domain errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation, serializationFailure:
			return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return err
}
