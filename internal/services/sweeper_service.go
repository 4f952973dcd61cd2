package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
)

const sweepBatchSize = 100

// SweeperService drives the two time-based flows: interval auto-release of
// escrow on bookings past their deadline, and end-of-day expiry of stale
// negotiations. Every mutation goes through the same conditional paths as the
// interactive API, so a sweep racing a manual action always has exactly one
// winner.
type SweeperService struct {
	bookingRepo *repositories.BookingRepo
	requestRepo *repositories.RequestRepo
	bookings    *BookingService
	negotiation *NegotiationService
	cfg         *config.Config
	log         *zap.Logger
}

func NewSweeperService(
	bookingRepo *repositories.BookingRepo,
	requestRepo *repositories.RequestRepo,
	bookings *BookingService,
	negotiation *NegotiationService,
	cfg *config.Config,
	log *zap.Logger,
) *SweeperService {
	return &SweeperService{
		bookingRepo: bookingRepo,
		requestRepo: requestRepo,
		bookings:    bookings,
		negotiation: negotiation,
		cfg:         cfg,
		log:         log,
	}
}

// Run blocks until ctx is cancelled: the auto-release sweep fires on the
// configured interval, the stale-request expiry on its cron spec.
func (s *SweeperService) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.ExpirySweepSpec, func() {
		if n, err := s.SweepStaleRequests(ctx); err != nil {
			s.log.Error("stale request sweep failed", zap.Error(err))
		} else if n > 0 {
			s.log.Info("stale requests expired", zap.Int("count", n))
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.log.Info("sweeper running",
		zap.Duration("interval", s.cfg.SweepInterval),
		zap.String("expiry_spec", s.cfg.ExpirySweepSpec))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.SweepAutoRelease(ctx); err != nil {
				s.log.Error("auto release sweep failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("bookings auto released", zap.Int("count", n))
			}
		}
	}
}

// SweepAutoRelease releases escrow on every booking past its deadline that is
// still untouched. A booking finalized manually between the scan and the
// release loses the race cleanly and is skipped.
func (s *SweeperService) SweepAutoRelease(ctx context.Context) (int, error) {
	due, err := s.bookingRepo.ListDueForAutoRelease(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		b := &due[i]
		err := s.bookings.Release(ctx, b.ID, nil, models.ActorSystem)
		switch {
		case err == nil:
			released++
		case errors.Is(err, apperr.ErrAlreadyFinalized):
			// Lost the race to a manual action.
		default:
			s.log.Error("auto release failed",
				zap.String("booking_id", b.ID.String()), zap.Error(err))
		}
	}
	return released, nil
}

// SweepStaleRequests system-cancels negotiations untouched past the expiry
// horizon, refunding any held money.
func (s *SweeperService) SweepStaleRequests(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RequestExpiryDays)
	stale, err := s.requestRepo.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		req := &stale[i]
		err := s.negotiation.ExpireStale(ctx, req.ID)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrAlreadyFinalized):
			// Resolved since the scan.
		default:
			s.log.Error("request expiry failed",
				zap.String("request_id", req.ID.String()), zap.Error(err))
		}
	}
	return expired, nil
}
