package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const CtxRequestID = "request_id"

// RequestIDMiddleware tags every request with an id, honoring one supplied by
// an upstream proxy, and echoes it back so gateway callbacks can be correlated
// with our logs.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Locals(CtxRequestID, id)
		c.Set(fiber.HeaderXRequestID, id)
		return c.Next()
	}
}
