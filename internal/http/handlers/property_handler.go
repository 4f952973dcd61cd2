package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/http/dto"
	"github.com/kejaview/backend/internal/middleware"
	"github.com/kejaview/backend/internal/services"
)

type PropertyHandler struct {
	propertyService *services.PropertyService
	availability    *services.AvailabilityService
	log             *zap.Logger
}

func NewPropertyHandler(propertyService *services.PropertyService, availability *services.AvailabilityService, log *zap.Logger) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService, availability: availability, log: log}
}

func (h *PropertyHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePropertyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	p, err := h.propertyService.Create(c.Context(), middleware.GetUserID(c), req.Title, req.Area)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *PropertyHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid property id")
	}
	p, err := h.propertyService.Get(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *PropertyHandler) AssignBundle(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid property id")
	}
	var req dto.AssignBundleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	groupID, err := uuid.Parse(req.PackageGroupID)
	if err != nil {
		return badRequest(c, "invalid package_group_id")
	}

	p, err := h.propertyService.AssignToBundle(c.Context(), middleware.GetUserID(c), id, groupID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

// Packages lists the purchasable tiers for a property with availability
// computed live.
func (h *PropertyHandler) Packages(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid property id")
	}
	options, err := h.availability.AvailablePackages(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: options})
}
