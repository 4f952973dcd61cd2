package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/auth"
	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/http/dto"
	"github.com/kejaview/backend/internal/middleware"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
)

// AuthHandler exchanges an identity-provider verified phone for an engine JWT.
// OTP/KYC verification happens upstream; this endpoint sits behind the
// provider's gateway and trusts the phone it forwards.
type AuthHandler struct {
	userRepo *repositories.UserRepo
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, cfg: cfg, log: log}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := dto.Validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	user := &models.User{
		Phone:       req.Phone,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	}
	if err := h.userRepo.UpsertByPhone(c.Context(), user); err != nil {
		h.log.Error("user upsert failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Phone, user.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByID(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *AuthHandler) Ping(c *fiber.Ctx) error {
	_ = h.userRepo.TouchLastActive(c.Context(), middleware.GetUserID(c))
	return c.JSON(dto.SuccessResponse{OK: true})
}
