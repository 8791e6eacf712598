package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/weaveui/dataset-manager/internal/api/http/handlers"
	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Consent        *handlers.ConsentHandler
	Dashboard      *handlers.DashboardHandler
	Discovery      *handlers.DiscoveryHandler
	OAuth          *handlers.OAuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/auth/operator/login", cfg.Auth.Login)

	// Creators reach these from email links, so they carry no operator auth; the
	// signed token is the credential.
	consent := app.Group("/consent")
	consent.Get("/approve", cfg.Consent.Approve)
	consent.Post("/approve", cfg.Consent.Approve)
	consent.Get("/decline", cfg.Consent.Decline)
	consent.Post("/decline", cfg.Consent.Decline)
	consent.Get("/:token", cfg.Consent.Page)

	app.Get("/oauth/start", cfg.OAuth.Start)
	app.Get("/oauth/callback", cfg.OAuth.Callback)

	operatorOnly := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireSubject(domain.SubjectTypeOperator, domain.SubjectTypeCLI)}

	dashboard := app.Group("/dashboard", operatorOnly...)
	dashboard.Get("/status", cfg.Dashboard.Status)
	dashboard.Get("/entries", cfg.Dashboard.Entries)
	dashboard.Post("/mark-sent", cfg.Dashboard.MarkSent)
	dashboard.Post("/mark-consent", cfg.Dashboard.MarkConsent)
	dashboard.Post("/prepare", cfg.Dashboard.Prepare)
	dashboard.Post("/send", cfg.Dashboard.Send)
	dashboard.Post("/download", cfg.Dashboard.Download)

	discovery := app.Group("/discovery", operatorOnly...)
	discovery.Post("/tags", cfg.Discovery.Tags)
	discovery.Post("/shots", cfg.Discovery.Shots)
}
