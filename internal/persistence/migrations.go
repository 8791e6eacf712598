package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/migrations"
)

// RunMigrations applies the embedded schema to the store's database.
func RunMigrations(ctx context.Context, store *Store, logger *zap.Logger) error {
	return ExecMigrations(ctx, store, "up", logger)
}

// ExecMigrations runs a goose command (up, down, status, ...) against the store.
func ExecMigrations(_ context.Context, store *Store, command string, logger *zap.Logger) error {
	if store == nil {
		logger.Warn("no store available; skipping migrations")
		return nil
	}

	switch store.Driver {
	case driverPostgres:
		db := stdlib.OpenDBFromPool(store.Postgres.PoolHandle())
		defer func() { _ = db.Close() }()
		if err := migrations.Exec(db, migrations.Postgres, command); err != nil {
			return err
		}
	case driverSQLite:
		if err := migrations.Exec(store.SQLite, migrations.SQLite, command); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported store driver %q", store.Driver)
	}

	logger.Info("migrations executed", zap.String("driver", store.Driver), zap.String("command", command))
	return nil
}
