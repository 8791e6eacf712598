package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/weaveui/dataset-manager/internal/api/dto"
	"github.com/weaveui/dataset-manager/internal/service"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// DiscoveryHandler exposes creator discovery runs.
type DiscoveryHandler struct {
	discovery *service.DiscoveryService
}

// NewDiscoveryHandler constructs handler.
func NewDiscoveryHandler(discoveryService *service.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{discovery: discoveryService}
}

// Tags handles POST /discovery/tags. Fetch failures end the run early but still answer
// 200 with the partial result.
func (h *DiscoveryHandler) Tags(c *fiber.Ctx) error {
	var req dto.TagSweepRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.discovery.Tags(c.UserContext(), service.TagSweepInput{
		Tags:     req.Tags,
		Days:     req.RecencyDays(),
		PerPage:  req.PerPage,
		MaxPages: req.MaxPages,
		Send:     req.Send,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}

// Shots handles POST /discovery/shots.
func (h *DiscoveryHandler) Shots(c *fiber.Ctx) error {
	var req dto.ShotsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.discovery.Shots(c.UserContext(), req.URLs, req.Send)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}
