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

type BookingHandler struct {
	bookings    *services.BookingService
	reschedules *services.RescheduleService
	alternative *services.AlternativeService
	cfg         *config.Config
	log         *zap.Logger
}

func NewBookingHandler(
	bookings *services.BookingService,
	reschedules *services.RescheduleService,
	alternative *services.AlternativeService,
	cfg *config.Config,
	log *zap.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookings:    bookings,
		reschedules: reschedules,
		alternative: alternative,
		cfg:         cfg,
		log:         log,
	}
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.bookings.Get(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c, h.cfg))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: b})
}

func (h *BookingHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.BookingFilter{Limit: 20}

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
		filter.SeekerID = &userID
	}

	out, err := h.bookings.List(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *BookingHandler) ConfirmArrival(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.bookings.ConfirmArrival(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: b})
}

func (h *BookingHandler) SubmitOutcome(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req dto.SubmitOutcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.bookings.SubmitOutcome(c.Context(), id, middleware.GetUserID(c), req.Outcome); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	if err := h.bookings.Cancel(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BookingHandler) ReportNoShow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	if err := h.bookings.ReportNoShow(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BookingHandler) Events(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	out, err := h.bookings.Events(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c, h.cfg), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *BookingHandler) ProposeMeetingPoint(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req dto.MeetingPointRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	m, err := h.bookings.ProposeMeetingPoint(c.Context(), id, middleware.GetUserID(c), req.Type, req.Location)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: m})
}

func (h *BookingHandler) AckMeetingPoint(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req dto.MeetingAckRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := h.bookings.AckMeetingPoint(c.Context(), id, middleware.GetUserID(c), req.Accept); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BookingHandler) GetMeetingPoint(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	m, err := h.bookings.MeetingPoint(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: m})
}

func (h *BookingHandler) CreateReschedule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req dto.CreateRescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	out, err := h.reschedules.Create(c.Context(), id, middleware.GetUserID(c), req.Date, req.Time, req.EndTime, req.Location)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *BookingHandler) ListReschedules(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	out, err := h.reschedules.ListByBooking(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *BookingHandler) CounterReschedule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("rescheduleId"))
	if err != nil {
		return badRequest(c, "invalid reschedule id")
	}
	var req dto.CounterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	out, err := h.reschedules.Counter(c.Context(), id, middleware.GetUserID(c), req.Date, req.TimeWindow, req.Location)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *BookingHandler) AcceptReschedule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("rescheduleId"))
	if err != nil {
		return badRequest(c, "invalid reschedule id")
	}
	b, err := h.reschedules.Accept(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: b})
}

func (h *BookingHandler) RejectReschedule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("rescheduleId"))
	if err != nil {
		return badRequest(c, "invalid reschedule id")
	}
	if err := h.reschedules.Reject(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BookingHandler) OfferAlternative(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req dto.OfferAlternativeRequest
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
	offer, err := h.alternative.Offer(c.Context(), id, middleware.GetUserID(c), propertyID, req.Date, req.TimeWindow)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *BookingHandler) GetAlternative(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	offer, err := h.alternative.GetPendingByBooking(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *BookingHandler) AcceptAlternative(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("offerId"))
	if err != nil {
		return badRequest(c, "invalid offer id")
	}
	b, err := h.alternative.Accept(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: b})
}

func (h *BookingHandler) DeclineAlternative(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("offerId"))
	if err != nil {
		return badRequest(c, "invalid offer id")
	}
	if err := h.alternative.Decline(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
