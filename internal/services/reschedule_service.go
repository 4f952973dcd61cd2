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

// RescheduleService negotiates schedule changes on a confirmed booking. At
// most one open request per booking; accepting applies the agreed schedule,
// resets arrival state and recomputes the auto-release deadline in one
// transaction.
type RescheduleService struct {
	pool           *pgxpool.Pool
	rescheduleRepo *repositories.RescheduleRepo
	bookingRepo    *repositories.BookingRepo
	disputeRepo    *repositories.DisputeRepo
	meetingRepo    *repositories.MeetingRepo
	auditRepo      *repositories.AuditRepo
	notifier       *NotifierClient
	publisher      events.Publisher
	cfg            *config.Config
	log            *zap.Logger
}

func NewRescheduleService(
	pool *pgxpool.Pool,
	rescheduleRepo *repositories.RescheduleRepo,
	bookingRepo *repositories.BookingRepo,
	disputeRepo *repositories.DisputeRepo,
	meetingRepo *repositories.MeetingRepo,
	auditRepo *repositories.AuditRepo,
	notifier *NotifierClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *RescheduleService {
	return &RescheduleService{
		pool:           pool,
		rescheduleRepo: rescheduleRepo,
		bookingRepo:    bookingRepo,
		disputeRepo:    disputeRepo,
		meetingRepo:    meetingRepo,
		auditRepo:      auditRepo,
		notifier:       notifier,
		publisher:      publisher,
		cfg:            cfg,
		log:            log,
	}
}

func (s *RescheduleService) publishUpdate(ctx context.Context, b *models.Booking, rescheduleID uuid.UUID, status string) {
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventReschedule,
		Parties: partyList(b.SeekerID, b.AgentID),
		Payload: map[string]any{
			"booking_id":    b.ID.String(),
			"reschedule_id": rescheduleID.String(),
			"status":        status,
		},
	})
}

// Create opens a reschedule request from either party on a confirmed booking
// whose meeting has not happened yet.
func (s *RescheduleService) Create(ctx context.Context, bookingID, userID uuid.UUID, date, startTime, endTime string, location *models.GeoPoint) (*models.RescheduleRequest, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	if b.Status != models.BookingStatusConfirmed || b.PhysicalMeetingConfirmed {
		return nil, apperr.ErrInvalidTransition
	}

	open, err := s.disputeRepo.HasOpenByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if open {
		return nil, apperr.ErrDisputePending
	}

	pending, err := s.rescheduleRepo.HasPendingByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if pending {
		return nil, apperr.ErrReschedulePending
	}

	if endTime == "" {
		endTime, err = endOfWindow(date, startTime, "", s.cfg.DefaultViewingMins)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "%s", err)
		}
	}
	if _, err := parseSlotTime(date, startTime); err != nil {
		return nil, apperr.New(apperr.KindValidation, "%s", err)
	}

	req := &models.RescheduleRequest{
		BookingID:   bookingID,
		RequestedBy: userID,
		Status:      models.RescheduleStatusPending,
		Date:        date,
		Time:        startTime,
		EndTime:     endTime,
		Location:    location,
	}
	if err := s.rescheduleRepo.Create(ctx, req); err != nil {
		return nil, apperr.Infra(err)
	}

	_ = s.auditRepo.Log(ctx, &userID, models.ActorUser, "reschedule_requested", "reschedule", &req.ID,
		map[string]any{"booking_id": bookingID.String(), "date": date})
	s.publishUpdate(ctx, b, req.ID, req.Status)

	counterparty := b.AgentID
	if userID == b.AgentID {
		counterparty = b.SeekerID
	}
	s.notifier.Notify(ctx, counterparty, "reschedule_requested", map[string]any{"booking_id": bookingID.String()})
	return req, nil
}

// Counter lets the counterparty answer a pending reschedule with a different
// slot. One counter round only; the original requester then accepts or
// rejects.
func (s *RescheduleService) Counter(ctx context.Context, rescheduleID, userID uuid.UUID, date, timeWindow string, location *models.GeoPoint) (*models.RescheduleRequest, error) {
	req, err := s.rescheduleRepo.GetByID(ctx, rescheduleID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	b, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	if userID == req.RequestedBy {
		return nil, apperr.ErrWrongParty
	}
	if _, _, err := splitWindow(timeWindow); err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid time window %q", timeWindow)
	}

	now := time.Now()
	counter := &models.CounterProposal{
		Date:       date,
		TimeWindow: timeWindow,
		Location:   location,
		ProposedBy: userID,
		ProposedAt: &now,
	}
	ok, err := s.rescheduleRepo.SetCounter(ctx, rescheduleID, counter)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if !ok {
		return nil, apperr.ErrInvalidTransition
	}
	req.Status = models.RescheduleStatusCountered
	req.Counter = counter

	_ = s.auditRepo.Log(ctx, &userID, models.ActorUser, "reschedule_countered", "reschedule", &req.ID, nil)
	s.publishUpdate(ctx, b, req.ID, req.Status)
	s.notifier.Notify(ctx, req.RequestedBy, "reschedule_countered", map[string]any{"booking_id": req.BookingID.String()})
	return req, nil
}

// Accept applies the active proposal to the booking. A pending request is
// accepted by the counterparty; a countered one by the original requester.
func (s *RescheduleService) Accept(ctx context.Context, rescheduleID, userID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	var bookingID uuid.UUID

	err := repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		reschedules := s.rescheduleRepo.WithTx(tx)
		req, err := reschedules.GetByID(ctx, rescheduleID)
		if err != nil {
			return apperr.ErrNotFound
		}
		bookingID = req.BookingID

		bookings := s.bookingRepo.WithTx(tx)
		b, err := bookings.GetByIDForUpdate(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if !isBookingParty(b, userID) {
			return apperr.ErrNotParty
		}
		if b.Status != models.BookingStatusConfirmed {
			return apperr.ErrInvalidTransition
		}

		// Acceptance must come from the side that did not author the active
		// proposal.
		activeProposer := req.RequestedBy
		if req.Counter != nil {
			activeProposer = req.Counter.ProposedBy
		}
		if userID == activeProposer {
			return apperr.ErrSelfAcceptance
		}

		date, start, end := req.Date, req.Time, req.EndTime
		if req.Counter != nil {
			var err error
			date = req.Counter.Date
			start, end, err = splitWindow(req.Counter.TimeWindow)
			if err != nil {
				return apperr.New(apperr.KindValidation, "invalid time window %q", req.Counter.TimeWindow)
			}
			end, err = endOfWindow(date, start, end, s.cfg.DefaultViewingMins)
			if err != nil {
				return apperr.New(apperr.KindValidation, "%s", err)
			}
		}
		releaseAt, err := autoReleaseAt(date, end, s.cfg.GracePeriod)
		if err != nil {
			return apperr.New(apperr.KindValidation, "%s", err)
		}

		ok, err := reschedules.UpdateStatus(ctx, req.ID, req.Status, models.RescheduleStatusAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvalidTransition
		}
		if err := bookings.ApplySchedule(ctx, b.ID, date, start, end, releaseAt); err != nil {
			return err
		}

		// An agreed location moves the meeting point along with the schedule.
		location := req.Location
		if req.Counter != nil {
			location = req.Counter.Location
		}
		if location != nil {
			point := &models.MeetingPoint{
				BookingID:  b.ID,
				Type:       models.MeetingLandmark,
				Location:   location,
				ProposedBy: activeProposer,
				AckStatus:  models.MeetingAckAccepted,
			}
			if err := s.meetingRepo.WithTx(tx).Upsert(ctx, point); err != nil {
				return err
			}
		}

		return s.auditRepo.WithTx(tx).Log(ctx, &userID, models.ActorUser, "reschedule_accepted", "reschedule", &req.ID,
			map[string]any{"booking_id": b.ID.String(), "date": date, "time": start})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return nil, apperr.Infra(err)
		}
		return nil, err
	}

	booking, err = s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}

	s.publishUpdate(ctx, booking, rescheduleID, models.RescheduleStatusAccepted)
	s.notifier.Notify(ctx, booking.SeekerID, "viewing_rescheduled", map[string]any{"booking_id": bookingID.String()})
	s.notifier.Notify(ctx, booking.AgentID, "viewing_rescheduled", map[string]any{"booking_id": bookingID.String()})
	return booking, nil
}

// Reject declines the active proposal; the booking keeps its schedule.
func (s *RescheduleService) Reject(ctx context.Context, rescheduleID, userID uuid.UUID) error {
	req, err := s.rescheduleRepo.GetByID(ctx, rescheduleID)
	if err != nil {
		return apperr.ErrNotFound
	}
	b, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return apperr.Infra(err)
	}
	if !isBookingParty(b, userID) {
		return apperr.ErrNotParty
	}

	activeProposer := req.RequestedBy
	if req.Counter != nil {
		activeProposer = req.Counter.ProposedBy
	}
	if userID == activeProposer {
		return apperr.ErrSelfAcceptance
	}

	ok, err := s.rescheduleRepo.UpdateStatus(ctx, rescheduleID, req.Status, models.RescheduleStatusRejected)
	if err != nil {
		return apperr.Infra(err)
	}
	if !ok {
		return apperr.ErrInvalidTransition
	}

	_ = s.auditRepo.Log(ctx, &userID, models.ActorUser, "reschedule_rejected", "reschedule", &req.ID, nil)
	s.publishUpdate(ctx, b, rescheduleID, models.RescheduleStatusRejected)
	s.notifier.Notify(ctx, req.RequestedBy, "reschedule_rejected", map[string]any{"booking_id": req.BookingID.String()})
	return nil
}

func (s *RescheduleService) ListByBooking(ctx context.Context, bookingID, userID uuid.UUID) ([]models.RescheduleRequest, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	out, err := s.rescheduleRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return out, nil
}
