package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/weaveui/dataset-manager/internal/service"
)

// OAuthHandler connects the service to a design platform account.
type OAuthHandler struct {
	oauth *service.OAuthService
}

// NewOAuthHandler constructs handler.
func NewOAuthHandler(oauthService *service.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauth: oauthService}
}

// Start handles GET /oauth/start by redirecting to the authorize page.
func (h *OAuthHandler) Start(c *fiber.Ctx) error {
	authURL, err := h.oauth.Start(c.UserContext())
	if err != nil {
		return err
	}
	return c.Redirect(authURL, http.StatusFound)
}

// Callback handles GET /oauth/callback.
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		return fiber.NewError(http.StatusBadRequest, "authorization denied: "+reason)
	}
	res, err := h.oauth.Callback(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"connected":  true,
		"token_type": res.TokenType,
		"scope":      res.Scope,
		"expires_at": res.ExpiresAt,
	}})
}
