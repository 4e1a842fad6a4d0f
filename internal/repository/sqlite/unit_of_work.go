package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork returns a domain.UnitOfWork over db, which should come from Open.
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
