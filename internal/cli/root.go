// Package cli implements consentctl, the operator command line for the dataset manager.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/app"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/observability"
	"github.com/weaveui/dataset-manager/internal/persistence"
)

const AppName = "consentctl"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// loadConfig is replaced in tests.
var loadConfig = config.Load

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd(Version).Execute()
}

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Operate the creator consent and dataset pipeline",
		Long:          "consentctl signs and checks consent tokens, runs discovery crawls and manages the schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.AddCommand(
		NewTokenCmd(),
		NewLinksCmd(),
		NewDiscoverCmd(),
		NewOperatorTokenCmd(),
		NewMigrateCmd(),
	)
	return cmd
}

// session is a fully wired container plus the resources it owns.
type session struct {
	*app.Container
	store *persistence.Store
	redis *persistence.Redis
}

func (s *session) Close() {
	_ = s.Container.Shutdown(context.Background())
	s.redis.Close()
	s.store.Close()
	_ = s.Logger.Sync()
}

// openSession connects to the configured store, applies migrations on SQLite and
// wires the services with synchronous event delivery.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store.Driver == config.StoreDriverSQLite {
		if err := persistence.RunMigrations(ctx, store, logger); err != nil {
			store.Close()
			return nil, err
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable; oauth token taken from config", zap.Error(err))
	}

	container, err := app.NewContainer(app.Options{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Redis:  redis,
	})
	if err != nil {
		redis.Close()
		store.Close()
		return nil, err
	}
	return &session{Container: container, store: store, redis: redis}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
