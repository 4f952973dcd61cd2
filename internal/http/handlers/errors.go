package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/http/dto"
	"github.com/kejaview/backend/internal/middleware"
)

// fail maps the service error vocabulary to HTTP. Infrastructure failures hide
// their detail behind a generic message; everything else is safe to surface.
func fail(c *fiber.Ctx, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case apperr.KindAuthorization:
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case apperr.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case apperr.KindConflict:
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error", RequestID: reqID})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}
