package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/http/dto"
	"github.com/kejaview/backend/internal/middleware"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
	"github.com/kejaview/backend/internal/services"
)

type RequestHandler struct {
	negotiation *services.NegotiationService
	cfg         *config.Config
	log         *zap.Logger
}

func NewRequestHandler(negotiation *services.NegotiationService, cfg *config.Config, log *zap.Logger) *RequestHandler {
	return &RequestHandler{negotiation: negotiation, cfg: cfg, log: log}
}

func (h *RequestHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return badRequest(c, "invalid property_id")
	}
	tierID, err := uuid.Parse(req.PackageTierID)
	if err != nil {
		return badRequest(c, "invalid package_tier_id")
	}

	slots := make([]models.ProposedSlot, 0, len(req.ProposedSlots))
	for _, s := range req.ProposedSlots {
		slots = append(slots, models.ProposedSlot{Date: s.Date, TimeWindow: s.TimeWindow})
	}

	out, err := h.negotiation.Create(c.Context(), middleware.GetUserID(c), propertyID, tierID, slots, req.PayerMSISDN)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *RequestHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	out, err := h.negotiation.Get(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c, h.cfg))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

// PaymentStatus is a cheap poll target for the payment screen while the STK
// push is in flight.
func (h *RequestHandler) PaymentStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	out, err := h.negotiation.Get(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c, h.cfg))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PaymentStatusResponse{
		RequestID:     out.ID.String(),
		PaymentStatus: out.PaymentStatus,
		AmountKES:     out.AmountKES,
	}})
}

func (h *RequestHandler) Events(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	out, err := h.negotiation.Events(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c, h.cfg), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *RequestHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.RequestFilter{Limit: 20}

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

	switch c.Query("role") {
	case "agent":
		filter.AgentID = &userID
	default:
		filter.RequesterID = &userID
	}

	out, err := h.negotiation.List(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *RequestHandler) Counter(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var req dto.CounterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.negotiation.Counter(c.Context(), id, middleware.GetUserID(c), req.Date, req.TimeWindow, req.Location)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *RequestHandler) Accept(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var req dto.AcceptRequestRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return badRequest(c, "invalid request")
	}

	booking, err := h.negotiation.Accept(c.Context(), id, middleware.GetUserID(c), req.SlotIndex, req.Date, req.TimeWindow)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: booking})
}

func (h *RequestHandler) Reject(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	if err := h.negotiation.Reject(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *RequestHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	if err := h.negotiation.Cancel(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *RequestHandler) Hide(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	if err := h.negotiation.Hide(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *RequestHandler) RetryPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var req dto.RetryPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.negotiation.RetryPayment(c.Context(), id, middleware.GetUserID(c), req.PayerMSISDN); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
