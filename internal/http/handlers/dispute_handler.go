package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/http/dto"
	"github.com/kejaview/backend/internal/middleware"
	"github.com/kejaview/backend/internal/repositories"
	"github.com/kejaview/backend/internal/services"
)

type DisputeHandler struct {
	disputes *services.DisputeService
	cfg      *config.Config
	log      *zap.Logger
}

func NewDisputeHandler(disputes *services.DisputeService, cfg *config.Config, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, cfg: cfg, log: log}
}

func (h *DisputeHandler) Open(c *fiber.Ctx) error {
	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	d, err := h.disputes.Open(c.Context(), bookingID, middleware.GetUserID(c), req.Category, req.Description, req.EvidenceRefs)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	d, err := h.disputes.Get(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c, h.cfg))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

// List is admin-only: the arbitration queue.
func (h *DisputeHandler) List(c *fiber.Ctx) error {
	filter := repositories.DisputeFilter{Limit: 20}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	out, err := h.disputes.List(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *DisputeHandler) Claim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	if err := h.disputes.Claim(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DisputeHandler) Resolve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.disputes.Resolve(c.Context(), id, middleware.GetUserID(c), req.Resolution, req.Notes); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
