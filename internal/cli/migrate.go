package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/observability"
	"github.com/weaveui/dataset-manager/internal/persistence"
)

var migrateCommands = []string{"up", "up-one", "down", "status", "version", "reset"}

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|up-one|down|status|version|reset]",
		Short:     "Apply or inspect the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			store, err := persistence.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := persistence.ExecMigrations(cmd.Context(), store, command, logger); err != nil {
				logger.Error("migration failed", zap.String("command", command), zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok (%s)\n", command, store.Driver)
			return nil
		},
	}
}
