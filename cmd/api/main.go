package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/app"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/observability"
	"github.com/weaveui/dataset-manager/internal/persistence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	if store.Driver == config.StoreDriverSQLite || cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, store, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable; oauth state kept in memory", zap.Error(err))
	}
	defer redis.Close()

	container, err := app.NewContainer(app.Options{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Redis:       redis,
		AsyncEvents: true,
	})
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}

	server, err := container.HTTPApp()
	if err != nil {
		logger.Fatal("failed to build http app", zap.Error(err))
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("public_base_url", cfg.App.PublicBaseURL))
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.Shutdown()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := container.Shutdown(drainCtx); err != nil {
		logger.Warn("event handlers did not finish", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
