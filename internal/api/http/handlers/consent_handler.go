package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/api/dto"
	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/service"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

//go:embed templates/*.html
var pageFS embed.FS

const (
	pageConsent = "consent_page.html"
	pageResult  = "consent_result.html"
	pageError   = "consent_error.html"
)

// ConsentHandler serves the pages creators reach from a consent email.
type ConsentHandler struct {
	consents *service.ConsentService
	pages    *template.Template
	brand    string
	logger   *zap.Logger
}

// NewConsentHandler constructs handler.
func NewConsentHandler(consents *service.ConsentService, brand string, logger *zap.Logger) (*ConsentHandler, error) {
	pages, err := template.ParseFS(pageFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsentHandler{consents: consents, pages: pages, brand: brand, logger: logger}, nil
}

type consentPageData struct {
	Title       string
	Brand       string
	CreatorName string
	ShotTitle   string
	ShotURL     string
	Scope       string
	State       domain.ConsentState
	ExpiresAt   string
	Token       string
	ApproveURL  string
	DeclineURL  string
}

type consentResultData struct {
	Title   string
	Granted bool
	Scope   string
}

type consentErrorData struct {
	Title   string
	Message string
}

// Page handles GET /consent/:token.
func (h *ConsentHandler) Page(c *fiber.Ctx) error {
	token := c.Params("token")
	view, err := h.consents.Inspect(c.UserContext(), token)
	if err != nil {
		return h.failure(c, err)
	}

	data := consentPageData{
		Title:       h.brand + " consent",
		Brand:       h.brand,
		CreatorName: "there",
		Scope:       view.Payload.ScopeOrDefault(),
		ExpiresAt:   view.Payload.ExpiresAtTime().UTC().Format("January 2, 2006"),
		Token:       token,
		ApproveURL:  view.Links.ApproveURL,
		DeclineURL:  view.Links.DeclineURL,
	}
	if view.Entry != nil {
		data.ShotTitle = view.Entry.Title
		data.ShotURL = view.Entry.URL
		if view.Entry.CreatorName != "" {
			data.CreatorName = view.Entry.CreatorName
		}
	}
	if view.Consent != nil && view.Consent.Granted != nil {
		data.State = view.Consent.State()
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"data": fiber.Map{
			"entry_id":   view.Payload.EntryID,
			"scope":      data.Scope,
			"expires_at": view.Payload.ExpiresAtTime().UTC(),
			"state":      view.Consent.State(),
			"links":      view.Links,
		}})
	}
	return h.render(c, http.StatusOK, pageConsent, data)
}

// Approve handles GET|POST /consent/approve.
func (h *ConsentHandler) Approve(c *fiber.Ctx) error {
	return h.decide(c, true)
}

// Decline handles GET|POST /consent/decline.
func (h *ConsentHandler) Decline(c *fiber.Ctx) error {
	return h.decide(c, false)
}

func (h *ConsentHandler) decide(c *fiber.Ctx, granted bool) error {
	token := tokenFrom(c)
	if token == "" {
		return h.failure(c, &auth.ConsentTokenError{Kind: auth.ErrMalformedToken, Reason: "missing token"})
	}

	res, err := h.consents.Decide(c.UserContext(), token, granted, "web")
	if err != nil {
		return h.failure(c, err)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"data": dto.ConsentDecisionResponse{
			EntryID:   res.EntryID,
			Granted:   res.Granted,
			Scope:     res.Scope,
			Evidence:  res.Evidence,
			DecidedAt: res.DecidedAt,
		}})
	}
	return h.render(c, http.StatusOK, pageResult, consentResultData{
		Title:   h.brand + " consent",
		Granted: res.Granted,
		Scope:   res.Scope,
	})
}

// failure renders token problems as a 400 page. Everything else goes to the error
// middleware.
func (h *ConsentHandler) failure(c *fiber.Ctx, err error) error {
	tokenErr, ok := service.IsTokenError(err)
	if !ok {
		return err
	}
	h.logger.Info("consent token rejected", zap.String("path", c.Path()), zap.String("reason", tokenErr.Error()))
	if wantsJSON(c) {
		return apperrors.NewInvalidToken(tokenErr.Reason, err)
	}
	return h.render(c, http.StatusBadRequest, pageError, consentErrorData{
		Title:   "Link not valid",
		Message: service.TokenFailureMessage(tokenErr),
	})
}

func (h *ConsentHandler) render(c *fiber.Ctx, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

func tokenFrom(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if c.Method() != fiber.MethodPost {
		return ""
	}
	var req dto.ConsentActionRequest
	if err := c.BodyParser(&req); err != nil {
		return ""
	}
	return req.Token
}

// wantsJSON prefers HTML unless the client asks for JSON only.
func wantsJSON(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
