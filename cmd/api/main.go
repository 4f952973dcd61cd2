package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/db"
	"github.com/kejaview/backend/internal/events"
	apphttp "github.com/kejaview/backend/internal/http"
	"github.com/kejaview/backend/internal/http/handlers"
	"github.com/kejaview/backend/internal/repositories"
	"github.com/kejaview/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	propertyRepo := repositories.NewPropertyRepo(pool)
	requestRepo := repositories.NewRequestRepo(pool)
	bookingRepo := repositories.NewBookingRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	rescheduleRepo := repositories.NewRescheduleRepo(pool)
	alternativeRepo := repositories.NewAlternativeRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	meetingRepo := repositories.NewMeetingRepo(pool)
	earningRepo := repositories.NewEarningRepo(pool)
	payoutRepo := repositories.NewPayoutRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	gateway := services.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayShortcode, log)
	notifier := services.NewNotifierClient(cfg.NotifierBaseURL, log)
	availability := services.NewAvailabilityService(propertyRepo, log)
	negotiationService := services.NewNegotiationService(pool, requestRepo, propertyRepo, bookingRepo, escrowRepo, meetingRepo, auditRepo, availability, gateway, notifier, publisher, cfg, log)
	bookingService := services.NewBookingService(pool, bookingRepo, requestRepo, propertyRepo, escrowRepo, earningRepo, payoutRepo, meetingRepo, disputeRepo, auditRepo, gateway, notifier, publisher, cfg, log)
	rescheduleService := services.NewRescheduleService(pool, rescheduleRepo, bookingRepo, disputeRepo, meetingRepo, auditRepo, notifier, publisher, cfg, log)
	alternativeService := services.NewAlternativeService(pool, alternativeRepo, bookingRepo, requestRepo, propertyRepo, escrowRepo, disputeRepo, auditRepo, notifier, publisher, cfg, log)
	disputeService := services.NewDisputeService(pool, disputeRepo, bookingRepo, auditRepo, bookingService, notifier, publisher, cfg, log)
	payoutService := services.NewPayoutService(payoutRepo, earningRepo, auditRepo, notifier, log)
	propertyService := services.NewPropertyService(pool, propertyRepo, auditRepo, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	propertyHandler := handlers.NewPropertyHandler(propertyService, availability, log)
	requestHandler := handlers.NewRequestHandler(negotiationService, cfg, log)
	bookingHandler := handlers.NewBookingHandler(bookingService, rescheduleService, alternativeService, cfg, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, cfg, log)
	paymentHandler := handlers.NewPaymentHandler(negotiationService, payoutService, cfg, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, propertyHandler, requestHandler, bookingHandler, disputeHandler, paymentHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
