package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/config"
	"github.com/kejaview/backend/internal/events"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
)

// AlternativeService handles substitute-property offers after a viewing ends
// with alternative_requested. Accepting an offer moves the held money to a
// fresh booking on the substitute property instead of refunding it: the
// original escrow entry closes as a transfer and a new entry takes custody,
// all in one transaction.
type AlternativeService struct {
	pool            *pgxpool.Pool
	alternativeRepo *repositories.AlternativeRepo
	bookingRepo     *repositories.BookingRepo
	requestRepo     *repositories.RequestRepo
	propertyRepo    *repositories.PropertyRepo
	escrowRepo      *repositories.EscrowRepo
	disputeRepo     *repositories.DisputeRepo
	auditRepo       *repositories.AuditRepo
	notifier        *NotifierClient
	publisher       events.Publisher
	cfg             *config.Config
	log             *zap.Logger
}

func NewAlternativeService(
	pool *pgxpool.Pool,
	alternativeRepo *repositories.AlternativeRepo,
	bookingRepo *repositories.BookingRepo,
	requestRepo *repositories.RequestRepo,
	propertyRepo *repositories.PropertyRepo,
	escrowRepo *repositories.EscrowRepo,
	disputeRepo *repositories.DisputeRepo,
	auditRepo *repositories.AuditRepo,
	notifier *NotifierClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *AlternativeService {
	return &AlternativeService{
		pool:            pool,
		alternativeRepo: alternativeRepo,
		bookingRepo:     bookingRepo,
		requestRepo:     requestRepo,
		propertyRepo:    propertyRepo,
		escrowRepo:      escrowRepo,
		disputeRepo:     disputeRepo,
		auditRepo:       auditRepo,
		notifier:        notifier,
		publisher:       publisher,
		cfg:             cfg,
		log:             log,
	}
}

func (s *AlternativeService) publishUpdate(ctx context.Context, offerID uuid.UUID, parties []string, status string) {
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventAlternative,
		Parties: parties,
		Payload: map[string]any{
			"offer_id": offerID.String(),
			"status":   status,
		},
	})
}

// Offer proposes a substitute property to the seeker. Only the listing agent,
// only after the seeker's outcome asked for an alternative, and only with a
// listable unlocked property of the same agent. The offer spawns a countered
// viewing request authored by the agent so the seeker's acceptance passes the
// usual self-acceptance check.
func (s *AlternativeService) Offer(ctx context.Context, originalBookingID, agentID, substituteID uuid.UUID, date, timeWindow string) (*models.AlternativeOffer, error) {
	b, err := s.bookingRepo.GetByID(ctx, originalBookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if agentID != b.AgentID {
		return nil, apperr.ErrAgentOnly
	}
	if b.Status != models.BookingStatusConfirmed || b.Outcome == nil || *b.Outcome != models.OutcomeAlternativeRequested {
		return nil, apperr.ErrInvalidTransition
	}
	if b.PaymentStatus != models.BookingPaymentEscrow {
		return nil, apperr.ErrAlreadyFinalized
	}

	pending, err := s.alternativeRepo.HasPendingByBooking(ctx, originalBookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if pending {
		return nil, apperr.New(apperr.KindConflict, "an alternative offer is already pending on this booking")
	}

	sub, err := s.propertyRepo.GetByID(ctx, substituteID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if sub.AgentID != agentID {
		return nil, apperr.ErrAgentOnly
	}
	if sub.ID == b.PropertyID || !sub.IsListable() || sub.IsLocked {
		return nil, apperr.ErrPackageUnavailable
	}
	if _, _, err := splitWindow(timeWindow); err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid time window %q", timeWindow)
	}

	original, err := s.requestRepo.GetByID(ctx, b.RequestID)
	if err != nil {
		return nil, apperr.Infra(err)
	}

	var offer *models.AlternativeOffer
	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		requests := s.requestRepo.WithTx(tx)
		newReq := &models.ViewingRequest{
			PropertyID:    substituteID,
			RequesterID:   b.SeekerID,
			AgentID:       agentID,
			PackageID:     original.PackageID,
			AmountKES:     b.AmountKES,
			Status:        models.RequestStatusPending,
			PaymentStatus: models.PaymentStatusEscrow,
			ProposedSlots: []models.ProposedSlot{{Date: date, TimeWindow: timeWindow}},
		}
		if err := requests.Create(ctx, newReq); err != nil {
			return err
		}

		now := time.Now()
		ok, err := requests.SetCounter(ctx, newReq.ID, models.RequestStatusPending, &models.CounterProposal{
			Date:       date,
			TimeWindow: timeWindow,
			ProposedBy: agentID,
			ProposedAt: &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvalidTransition
		}

		offer = &models.AlternativeOffer{
			OriginalBookingID: originalBookingID,
			NewRequestID:      newReq.ID,
			PropertyID:        substituteID,
			OfferedBy:         agentID,
			Status:            models.AlternativeStatusPending,
		}
		if err := s.alternativeRepo.WithTx(tx).Create(ctx, offer); err != nil {
			return err
		}
		return s.auditRepo.WithTx(tx).Log(ctx, &agentID, models.ActorUser, "alternative_offered", "alternative", &offer.ID,
			map[string]any{"original_booking_id": originalBookingID.String(), "property_id": substituteID.String()})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return nil, apperr.Infra(err)
		}
		return nil, err
	}

	s.publishUpdate(ctx, offer.ID, partyList(b.SeekerID, b.AgentID), offer.Status)
	s.notifier.Notify(ctx, b.SeekerID, "alternative_offered", map[string]any{"offer_id": offer.ID.String()})
	return offer, nil
}

// Accept moves the held money to the substitute. In one transaction: the
// original escrow entry is released as a transfer (no earning, no payout), the
// original booking completes, its property unlocks, the substitute property
// locks, the substitute request is accepted and a fresh escrow entry backs the
// new confirmed booking.
func (s *AlternativeService) Accept(ctx context.Context, offerID, seekerID uuid.UUID) (*models.Booking, error) {
	var newBooking *models.Booking
	var origBookingID uuid.UUID

	err := repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		offers := s.alternativeRepo.WithTx(tx)
		offer, err := offers.GetByID(ctx, offerID)
		if err != nil {
			return apperr.ErrNotFound
		}
		if offer.Status != models.AlternativeStatusPending {
			return apperr.ErrInvalidTransition
		}

		bookings := s.bookingRepo.WithTx(tx)
		orig, err := bookings.GetByIDForUpdate(ctx, offer.OriginalBookingID)
		if err != nil {
			return err
		}
		if seekerID != orig.SeekerID {
			return apperr.ErrSeekerOnly
		}
		if orig.Status != models.BookingStatusConfirmed || orig.PaymentStatus != models.BookingPaymentEscrow {
			return apperr.ErrAlreadyFinalized
		}
		origBookingID = orig.ID

		requests := s.requestRepo.WithTx(tx)
		newReq, err := requests.GetByIDForUpdate(ctx, offer.NewRequestID)
		if err != nil {
			return err
		}
		if newReq.Counter == nil {
			return apperr.ErrNoScheduleAvailable
		}

		date := newReq.Counter.Date
		start, end, err := splitWindow(newReq.Counter.TimeWindow)
		if err != nil {
			return apperr.New(apperr.KindValidation, "invalid time window %q", newReq.Counter.TimeWindow)
		}
		end, err = endOfWindow(date, start, end, s.cfg.DefaultViewingMins)
		if err != nil {
			return apperr.New(apperr.KindValidation, "%s", err)
		}
		releaseAt, err := autoReleaseAt(date, end, s.cfg.GracePeriod)
		if err != nil {
			return apperr.New(apperr.KindValidation, "%s", err)
		}

		// Close out the original side.
		escrows := s.escrowRepo.WithTx(tx)
		origEntry, err := escrows.GetByBookingID(ctx, orig.ID)
		if err != nil {
			return err
		}
		released, err := escrows.MarkReleased(ctx, origEntry.ID, true)
		if err != nil {
			return err
		}
		if !released {
			return apperr.ErrAlreadyFinalized
		}
		// The original viewing did happen; it completes, with the hold
		// transferred instead of earned out.
		done, err := bookings.FinalizeCompleted(ctx, orig.ID)
		if err != nil {
			return err
		}
		if !done {
			return apperr.ErrAlreadyFinalized
		}
		if err := requests.SetPaymentStatus(ctx, orig.RequestID, models.PaymentStatusPaid); err != nil {
			return err
		}
		properties := s.propertyRepo.WithTx(tx)
		if err := properties.Unlock(ctx, orig.PropertyID); err != nil {
			return err
		}

		// Stand up the substitute side.
		locked, err := properties.Lock(ctx, offer.PropertyID)
		if err != nil {
			return err
		}
		if !locked {
			return apperr.ErrPropertyLocked
		}
		ok, err := requests.UpdateStatus(ctx, newReq.ID, newReq.Status, models.RequestStatusAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvalidTransition
		}

		newBooking = &models.Booking{
			RequestID:        newReq.ID,
			PropertyID:       offer.PropertyID,
			SeekerID:         orig.SeekerID,
			AgentID:          orig.AgentID,
			AmountKES:        orig.AmountKES,
			Status:           models.BookingStatusConfirmed,
			PaymentStatus:    models.BookingPaymentEscrow,
			ScheduledDate:    date,
			ScheduledTime:    start,
			ScheduledEndTime: end,
			AutoReleaseAt:    releaseAt,
		}
		if err := bookings.Create(ctx, newBooking); err != nil {
			return err
		}

		transfer := &models.EscrowEntry{
			RequestID: newReq.ID,
			BookingID: &newBooking.ID,
			AmountKES: orig.AmountKES,
			Status:    models.EscrowStatusEscrow,
		}
		if err := escrows.Create(ctx, transfer); err != nil {
			return err
		}

		accepted, err := offers.MarkAccepted(ctx, offer.ID, newBooking.ID)
		if err != nil {
			return err
		}
		if !accepted {
			return apperr.ErrInvalidTransition
		}

		return s.auditRepo.WithTx(tx).Log(ctx, &seekerID, models.ActorUser, "alternative_accepted", "alternative", &offer.ID,
			map[string]any{"new_booking_id": newBooking.ID.String()})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return nil, apperr.Infra(err)
		}
		return nil, err
	}

	s.publishUpdate(ctx, offerID, partyList(newBooking.SeekerID, newBooking.AgentID), models.AlternativeStatusAccepted)
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventBookingStatusChanged,
		Parties: partyList(newBooking.SeekerID, newBooking.AgentID),
		Payload: map[string]any{
			"booking_id": origBookingID.String(),
			"new_status": models.BookingStatusCompleted,
		},
	})
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventBookingStatusChanged,
		Parties: partyList(newBooking.SeekerID, newBooking.AgentID),
		Payload: map[string]any{
			"booking_id": newBooking.ID.String(),
			"new_status": models.BookingStatusConfirmed,
		},
	})
	s.notifier.Notify(ctx, newBooking.AgentID, "alternative_accepted", map[string]any{"booking_id": newBooking.ID.String()})
	return newBooking, nil
}

// Decline turns the offer down. The money stays held on the original booking
// and, in the same transaction, an alternative_declined dispute opens so an
// admin decides where the hold goes.
func (s *AlternativeService) Decline(ctx context.Context, offerID, seekerID uuid.UUID) error {
	offer, err := s.alternativeRepo.GetByID(ctx, offerID)
	if err != nil {
		return apperr.ErrNotFound
	}
	b, err := s.bookingRepo.GetByID(ctx, offer.OriginalBookingID)
	if err != nil {
		return apperr.Infra(err)
	}
	if seekerID != b.SeekerID {
		return apperr.ErrSeekerOnly
	}

	var dispute *models.Dispute
	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		done, err := s.alternativeRepo.WithTx(tx).MarkDeclined(ctx, offerID)
		if err != nil {
			return err
		}
		if !done {
			return apperr.ErrInvalidTransition
		}
		requests := s.requestRepo.WithTx(tx)
		newReq, err := requests.GetByIDForUpdate(ctx, offer.NewRequestID)
		if err != nil {
			return err
		}
		if _, err := requests.UpdateStatus(ctx, newReq.ID, newReq.Status, models.RequestStatusCancelled); err != nil {
			return err
		}

		disputes := s.disputeRepo.WithTx(tx)
		open, err := disputes.HasOpenByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if !open {
			dispute = &models.Dispute{
				BookingID:   b.ID,
				RaisedBy:    seekerID,
				Category:    models.DisputeAlternativeDeclined,
				Description: "substitute property offer declined by the seeker",
				Status:      models.DisputeStatusOpen,
			}
			if err := disputes.Create(ctx, dispute); err != nil {
				return err
			}
			if _, err := s.bookingRepo.WithTx(tx).MarkDisputed(ctx, b.ID); err != nil {
				return err
			}
		}
		return s.auditRepo.WithTx(tx).Log(ctx, &seekerID, models.ActorUser, "alternative_declined", "alternative", &offerID, nil)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.Infra(err)
		}
		return err
	}

	s.publishUpdate(ctx, offerID, partyList(b.SeekerID, b.AgentID), models.AlternativeStatusDeclined)
	if dispute != nil {
		_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
			Type:    events.EventDisputeUpdated,
			Parties: partyList(b.SeekerID, b.AgentID),
			Payload: map[string]any{
				"dispute_id": dispute.ID.String(),
				"booking_id": b.ID.String(),
				"category":   dispute.Category,
				"status":     dispute.Status,
			},
		})
	}
	s.notifier.Notify(ctx, offer.OfferedBy, "alternative_declined", map[string]any{"offer_id": offerID.String()})
	return nil
}

func (s *AlternativeService) GetPendingByBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.AlternativeOffer, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	offer, err := s.alternativeRepo.GetPendingByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return offer, nil
}
