package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/repository"
)

const (
	driverPostgres = config.StoreDriverPostgres
	driverSQLite   = config.StoreDriverSQLite
)

// Store is the selected persistence backend plus its repositories.
type Store struct {
	Driver   string
	Postgres *Postgres
	SQLite   *sql.DB
	Repos    repository.Set
}

// OpenStore connects to the backend named by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	switch cfg.Store.Driver {
	case driverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: driverPostgres, Postgres: pg, Repos: repository.NewPostgresSet(pg.PoolHandle())}, nil
	case driverSQLite, "":
		db, err := NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: driverSQLite, SQLite: db, Repos: repository.NewSQLiteSet(db)}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return errors.New("store not configured")
	}
	switch s.Driver {
	case driverPostgres:
		return s.Postgres.PoolHandle().Ping(ctx)
	default:
		return s.SQLite.PingContext(ctx)
	}
}

// Close releases database resources.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.Postgres.Close()
	if s.SQLite != nil {
		_ = s.SQLite.Close()
	}
}
