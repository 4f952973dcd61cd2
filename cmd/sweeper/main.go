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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	requestRepo := repositories.NewRequestRepo(pool)
	propertyRepo := repositories.NewPropertyRepo(pool)
	bookingRepo := repositories.NewBookingRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	earningRepo := repositories.NewEarningRepo(pool)
	payoutRepo := repositories.NewPayoutRepo(pool)
	meetingRepo := repositories.NewMeetingRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Sweeps reuse the same services as the API so every state change takes
	// the same conditional-update path.
	publisher := events.NewRedisPublisher(rdb, log)
	gateway := services.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayShortcode, log)
	notifier := services.NewNotifierClient(cfg.NotifierBaseURL, log)
	availability := services.NewAvailabilityService(propertyRepo, log)
	negotiationService := services.NewNegotiationService(pool, requestRepo, propertyRepo, bookingRepo, escrowRepo, meetingRepo, auditRepo, availability, gateway, notifier, publisher, cfg, log)
	bookingService := services.NewBookingService(pool, bookingRepo, requestRepo, propertyRepo, escrowRepo, earningRepo, payoutRepo, meetingRepo, disputeRepo, auditRepo, gateway, notifier, publisher, cfg, log)
	sweeper := services.NewSweeperService(bookingRepo, requestRepo, bookingService, negotiationService, cfg, log)

	// Liveness endpoint for the orchestrator
	health := fiber.New(fiber.Config{DisableStartupMessage: true})
	health.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		if err := health.Listen(fmt.Sprintf(":%s", cfg.SweeperPort)); err != nil {
			log.Error("health server error", zap.Error(err))
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down sweeper")
		cancel()
		_ = health.Shutdown()
	}()

	if err := sweeper.Run(ctx); err != nil {
		log.Fatal("sweeper error", zap.Error(err))
	}
}
