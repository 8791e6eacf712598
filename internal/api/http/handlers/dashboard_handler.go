package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/weaveui/dataset-manager/internal/api/dto"
	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/repository"
	"github.com/weaveui/dataset-manager/internal/service"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// DashboardHandler serves the operator's outreach bookkeeping.
type DashboardHandler struct {
	entries   *service.EntryService
	consents  *service.ConsentService
	outreach  *service.OutreachService
	downloads *service.DownloadService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(entries *service.EntryService, consents *service.ConsentService, outreach *service.OutreachService, downloads *service.DownloadService) *DashboardHandler {
	return &DashboardHandler{entries: entries, consents: consents, outreach: outreach, downloads: downloads}
}

// Status handles GET /dashboard/status?id=.
func (h *DashboardHandler) Status(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		return apperrors.NewValidationError("id required", nil)
	}
	status, err := h.entries.Status(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EntryStatusResponse{
		ID:         status.ID,
		Entry:      dto.NewEntryResponse(status.Entry),
		SentAt:     status.SentAt,
		Consent:    dto.NewConsentResponse(status.Consent),
		Downloaded: status.Downloaded,
	}})
}

// Entries handles GET /dashboard/entries.
func (h *DashboardHandler) Entries(c *fiber.Ctx) error {
	state, ok := domain.ParseConsentState(c.Query("consent"))
	if !ok {
		return apperrors.NewValidationError("consent must be pending, granted or declined", map[string]any{"consent": c.Query("consent")})
	}
	filter := repository.EntryFilter{
		Consent: state,
		Limit:   c.QueryInt("limit", 0),
		Offset:  c.QueryInt("offset", 0),
	}
	if creator := c.Query("creator_id"); creator != "" {
		filter.CreatorID = &creator
	}

	records, err := h.entries.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.EntryListItem, 0, len(records))
	for i := range records {
		items = append(items, dto.EntryListItem{
			EntryResponse: *dto.NewEntryResponse(&records[i].Entry),
			Consent:       dto.NewConsentResponse(records[i].Consent),
			DownloadCount: records[i].DownloadCount,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkSent handles POST /dashboard/mark-sent.
func (h *DashboardHandler) MarkSent(c *fiber.Ctx) error {
	var req dto.EntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.entries.MarkSent(c.UserContext(), req.Entry()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": req.ID, "sent": true}})
}

// MarkConsent handles POST /dashboard/mark-consent.
func (h *DashboardHandler) MarkConsent(c *fiber.Ctx) error {
	var req dto.MarkConsentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Evidence) == "" {
		return apperrors.NewValidationError("evidence required", nil)
	}
	var at time.Time
	if req.DecidedAt != nil {
		at = *req.DecidedAt
	}
	if err := h.entries.MarkConsent(c.UserContext(), req.ID, req.Evidence, req.Scope, at); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": req.ID, "granted": true}})
}

// Prepare handles POST /dashboard/prepare.
func (h *DashboardHandler) Prepare(c *fiber.Ctx) error {
	var req dto.EntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.outreach.Prepare(c.UserContext(), service.PrepareInput{
		EntryID:       req.ID,
		Title:         req.Title,
		URL:           req.URL,
		CreatorName:   req.CreatorName,
		CreatorHandle: req.CreatorHandle,
		CreatorID:     req.CreatorID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id":     res.EntryID,
		"letter": res.LetterPath,
	}})
}

// Send handles POST /dashboard/send.
func (h *DashboardHandler) Send(c *fiber.Ctx) error {
	var req dto.SendConsentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.consents.SendRequest(c.UserContext(), service.SendRequestInput{
		EntryID:     req.ID,
		To:          req.To,
		Scope:       req.Scope,
		Title:       req.Title,
		URL:         req.URL,
		CreatorName: req.CreatorName,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":         res.EntryID,
		"to":         res.To,
		"links":      res.Links,
		"expires_at": res.ExpiresAt,
		"sent_at":    res.SentAt,
	}})
}

// Download handles POST /dashboard/download.
func (h *DashboardHandler) Download(c *fiber.Ctx) error {
	var req dto.DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.downloads.Download(c.UserContext(), req.ID)
	if err != nil {
		return err
	}
	files := make([]string, 0, len(res.Saved))
	for _, d := range res.Saved {
		files = append(files, d.FilePath)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":      res.EntryID,
		"saved":   len(res.Saved),
		"skipped": res.Skipped,
		"files":   files,
	}})
}
