package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/yoshapihoff/bricks/identity/internal/config"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	"github.com/yoshapihoff/bricks/identity/internal/repository/memory"
	postgresRepo "github.com/yoshapihoff/bricks/identity/internal/repository/postgres"
	sqliteRepo "github.com/yoshapihoff/bricks/identity/internal/repository/sqlite"
)

// Init initializes the database connection and returns a *sql.DB instance
func Init(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	// Test the database connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables if they don't exist
	if err := postgresRepo.CreateTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Store is an opened persistence backend.
type Store struct {
	UnitOfWork domain.UnitOfWork
	close      func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open selects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	switch cfg.Driver {
	case "", config.DriverPostgres:
		db, err := Init(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Store{UnitOfWork: postgresRepo.NewUnitOfWork(db), close: db.Close}, nil
	case config.DriverSQLite:
		db, err := sqliteRepo.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{UnitOfWork: sqliteRepo.NewUnitOfWork(db), close: db.Close}, nil
	case config.DriverMemory:
		return &Store{UnitOfWork: memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}
