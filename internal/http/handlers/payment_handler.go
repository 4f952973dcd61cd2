package handlers

import (
	"crypto/subtle"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/http/dto"
	"github.com/kejaview/backend/internal/middleware"
	"github.com/kejaview/backend/internal/services"
)

// PaymentHandler receives the gateway's escrow confirmation callback and
// serves payout-account endpoints for agents.
type PaymentHandler struct {
	negotiation *services.NegotiationService
	payouts     *services.PayoutService
	cfg         *config.Config
	log         *zap.Logger
}

func NewPaymentHandler(negotiation *services.NegotiationService, payouts *services.PayoutService, cfg *config.Config, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{negotiation: negotiation, payouts: payouts, cfg: cfg, log: log}
}

// Callback is hit by the gateway adapter, not by users. It authenticates with
// the shared callback key and must answer 200 on redelivery.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	key := c.Get("X-Callback-Key")
	if h.cfg.GatewayCallbackKey != "" &&
		subtle.ConstantTimeCompare([]byte(key), []byte(h.cfg.GatewayCallbackKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid callback key"})
	}

	var req dto.PaymentCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		return badRequest(c, "invalid request_id")
	}

	if err := h.negotiation.ConfirmPayment(c.Context(), requestID, req.Receipt, req.PayerMSISDN); err != nil {
		h.log.Warn("payment callback rejected",
			zap.String("request_id", req.RequestID), zap.Error(err))
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PaymentHandler) SetPayoutAccount(c *fiber.Ctx) error {
	var req dto.SetPayoutAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	account, err := h.payouts.SetAccount(c.Context(), middleware.GetUserID(c), req.MSISDN)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: account})
}

func (h *PaymentHandler) GetPayoutAccount(c *fiber.Ctx) error {
	account, err := h.payouts.Account(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: account})
}

func (h *PaymentHandler) ConfirmPayoutAccount(c *fiber.Ctx) error {
	var req dto.ConfirmPayoutAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.payouts.Confirm(c.Context(), middleware.GetUserID(c), req.Code); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PaymentHandler) VerifyPayoutAccount(c *fiber.Ctx) error {
	agentID, err := uuid.Parse(c.Params("agentId"))
	if err != nil {
		return badRequest(c, "invalid agent id")
	}
	if err := h.payouts.Verify(c.Context(), agentID, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PaymentHandler) Earnings(c *fiber.Ctx) error {
	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	summary, err := h.payouts.Earnings(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}
