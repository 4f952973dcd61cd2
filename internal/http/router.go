package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/http/handlers"
	"github.com/kejaview/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	propertyHandler *handlers.PropertyHandler,
	requestHandler *handlers.RequestHandler,
	bookingHandler *handlers.BookingHandler,
	disputeHandler *handlers.DisputeHandler,
	paymentHandler *handlers.PaymentHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/login", authHandler.Login)

	// Gateway callback (shared-key auth, not JWT)
	api.Post("/payments/callback", paymentHandler.Callback)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", authHandler.Me)
	protected.Post("/me/ping", authHandler.Ping)

	// Properties and package availability
	protected.Post("/properties", propertyHandler.Create)
	protected.Get("/properties/:id", propertyHandler.Get)
	protected.Post("/properties/:id/bundle", propertyHandler.AssignBundle)
	protected.Get("/properties/:id/packages", propertyHandler.Packages)

	// Viewing requests (negotiation)
	protected.Post("/requests", requestHandler.Create)
	protected.Get("/requests", requestHandler.List)
	protected.Get("/requests/:id", requestHandler.Get)
	protected.Get("/requests/:id/payment", requestHandler.PaymentStatus)
	protected.Get("/requests/:id/events", requestHandler.Events)
	protected.Post("/requests/:id/counter", requestHandler.Counter)
	protected.Post("/requests/:id/accept", requestHandler.Accept)
	protected.Post("/requests/:id/reject", requestHandler.Reject)
	protected.Post("/requests/:id/cancel", requestHandler.Cancel)
	protected.Post("/requests/:id/hide", requestHandler.Hide)
	protected.Post("/requests/:id/retry-payment", requestHandler.RetryPayment)

	// Bookings
	protected.Get("/bookings", bookingHandler.List)
	protected.Get("/bookings/:id", bookingHandler.Get)
	protected.Post("/bookings/:id/arrive", bookingHandler.ConfirmArrival)
	protected.Post("/bookings/:id/outcome", bookingHandler.SubmitOutcome)
	protected.Post("/bookings/:id/cancel", bookingHandler.Cancel)
	protected.Post("/bookings/:id/no-show", bookingHandler.ReportNoShow)
	protected.Get("/bookings/:id/events", bookingHandler.Events)
	protected.Get("/bookings/:id/meeting-point", bookingHandler.GetMeetingPoint)
	protected.Put("/bookings/:id/meeting-point", bookingHandler.ProposeMeetingPoint)
	protected.Post("/bookings/:id/meeting-point/ack", bookingHandler.AckMeetingPoint)

	// Reschedules
	protected.Post("/bookings/:id/reschedules", bookingHandler.CreateReschedule)
	protected.Get("/bookings/:id/reschedules", bookingHandler.ListReschedules)
	protected.Post("/reschedules/:rescheduleId/counter", bookingHandler.CounterReschedule)
	protected.Post("/reschedules/:rescheduleId/accept", bookingHandler.AcceptReschedule)
	protected.Post("/reschedules/:rescheduleId/reject", bookingHandler.RejectReschedule)

	// Alternative offers
	protected.Post("/bookings/:id/alternative", bookingHandler.OfferAlternative)
	protected.Get("/bookings/:id/alternative", bookingHandler.GetAlternative)
	protected.Post("/alternatives/:offerId/accept", bookingHandler.AcceptAlternative)
	protected.Post("/alternatives/:offerId/decline", bookingHandler.DeclineAlternative)

	// Disputes
	protected.Post("/bookings/:id/disputes", disputeHandler.Open)
	protected.Get("/disputes/:id", disputeHandler.Get)

	// Payouts and earnings (agents)
	protected.Put("/me/payout-account", paymentHandler.SetPayoutAccount)
	protected.Post("/me/payout-account/verify", paymentHandler.ConfirmPayoutAccount)
	protected.Get("/me/payout-account", paymentHandler.GetPayoutAccount)
	protected.Get("/me/earnings", paymentHandler.Earnings)

	// Admin arbitration
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Get("/disputes", disputeHandler.List)
	admin.Post("/disputes/:id/claim", disputeHandler.Claim)
	admin.Post("/disputes/:id/resolve", disputeHandler.Resolve)
	admin.Post("/payout-accounts/:agentId/verify", paymentHandler.VerifyPayoutAccount)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
