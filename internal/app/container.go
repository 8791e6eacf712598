// Package app wires configuration, storage and services into a runnable service.
package app

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/weaveui/dataset-manager/internal/api/http"
	"github.com/weaveui/dataset-manager/internal/api/http/handlers"
	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/dribbble"
	"github.com/weaveui/dataset-manager/internal/events"
	appmail "github.com/weaveui/dataset-manager/internal/mail"
	"github.com/weaveui/dataset-manager/internal/observability"
	"github.com/weaveui/dataset-manager/internal/persistence"
	"github.com/weaveui/dataset-manager/internal/repository"
	"github.com/weaveui/dataset-manager/internal/service"
	"github.com/weaveui/dataset-manager/internal/worker"
)

// Options are the externally owned resources a Container is built from. Store is
// required; the rest have defaults.
type Options struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      *persistence.Store
	Redis      *persistence.Redis
	Mailer     appmail.Mailer
	HTTPClient dribbble.HTTPClient
	// AsyncEvents runs event handlers in the background, as the API server does.
	AsyncEvents bool
}

// Container holds the wired services.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Store      *persistence.Store
	Redis      *persistence.Redis
	Dispatcher *events.InMemoryDispatcher
	Tokens     *auth.TokenManager
	Codec      *auth.ConsentCodec
	Client     *dribbble.Client

	Auth          *service.AuthService
	Entries       *service.EntryService
	Consents      *service.ConsentService
	Outreach      *service.OutreachService
	Downloads     *service.DownloadService
	OAuth         *service.OAuthService
	Discovery     *service.DiscoveryService
	Notifications *service.NotificationService

	worker *worker.NotificationWorker
}

// NewContainer wires every service on top of opts.
func NewContainer(opts Options) (*Container, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	codec, err := auth.NewConsentCodec(cfg.Consent)
	if err != nil {
		return nil, err
	}
	templates, err := appmail.LoadTemplates(cfg.Outreach.TemplatePath)
	if err != nil {
		return nil, err
	}

	mailer := opts.Mailer
	if mailer == nil {
		mailer = appmail.New(cfg.SMTP, logger)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	if opts.AsyncEvents {
		dispatcher = events.NewAsyncDispatcher(logger)
	}

	var states repository.OAuthStateRepository = repository.NewMemoryOAuthStateRepository()
	if opts.Redis != nil {
		states = repository.NewRedisOAuthStateRepository(opts.Redis.Client)
	}

	repos := opts.Store.Repos
	composer := appmail.NewComposer(cfg.Sender, cfg.SMTP)
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	client := dribbble.NewClient(httpClient, cfg.Dribbble.APIBaseURL, cfg.Dribbble.AccessToken)

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Store:      opts.Store,
		Redis:      opts.Redis,
		Dispatcher: dispatcher,
		Tokens:     tokens,
		Codec:      codec,
		Client:     client,
	}

	c.Auth = service.NewAuthService(cfg.Auth, tokens)
	c.Entries = service.NewEntryService(repos)
	c.Consents = service.NewConsentService(cfg, service.ConsentDependencies{
		Codec:       codec,
		EntryRepo:   repos.Entries,
		ConsentRepo: repos.Consents,
		Mailer:      mailer,
		Composer:    composer,
		Templates:   templates,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	c.Outreach = service.NewOutreachService(cfg, repos.Entries, templates, dispatcher, logger)
	c.OAuth = service.NewOAuthService(cfg.Dribbble, states, logger)
	c.Downloads = service.NewDownloadService(repos, client, c.OAuth, dispatcher, cfg.Outreach.DownloadDir, logger)
	c.Discovery = service.NewDiscoveryService(cfg.Discovery, client, c.OAuth, c.Outreach, metrics, logger)
	c.Notifications = service.NewNotificationService(dispatcher, mailer, composer, templates, cfg.Sender, logger)

	var drainer worker.Drainer
	if opts.AsyncEvents {
		drainer = dispatcher
	}
	c.worker = worker.StartNotificationWorker(c.Notifications, drainer, logger)
	return c, nil
}

// HTTPApp builds the fiber application serving every route.
func (c *Container) HTTPApp() (*fiber.App, error) {
	consentHandler, err := handlers.NewConsentHandler(c.Consents, c.Config.Sender.Brand, c.Logger)
	if err != nil {
		return nil, err
	}

	var redis handlers.Pinger
	if c.Redis != nil {
		redis = c.Redis
	}

	app := fiber.New(fiber.Config{
		AppName:               c.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, c.Logger, c.Metrics, c.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(c.Config.App.Name, c.Config.App.Version, c.Store, redis, c.Metrics),
		Auth:           handlers.NewAuthHandler(c.Auth),
		Consent:        consentHandler,
		Dashboard:      handlers.NewDashboardHandler(c.Entries, c.Consents, c.Outreach, c.Downloads),
		Discovery:      handlers.NewDiscoveryHandler(c.Discovery),
		OAuth:          handlers.NewOAuthHandler(c.OAuth),
		AuthMiddleware: auth.NewAuthMiddleware(c.Tokens, c.Config.Auth.OperatorEmail),
	})
	return app, nil
}

// Shutdown waits for background event handlers.
func (c *Container) Shutdown(ctx context.Context) error {
	return c.worker.Stop(ctx)
}
