package services

import (
	"context"
	"errors"
	"fmt"
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

// NegotiationService owns the viewing-request state machine: creation with
// payment initiation, counter rounds, acceptance (which spawns the booking and
// locks the property in one transaction), rejection and cancellation with
// refund, and the payment confirmation callback.
type NegotiationService struct {
	pool         *pgxpool.Pool
	requestRepo  *repositories.RequestRepo
	propertyRepo *repositories.PropertyRepo
	bookingRepo  *repositories.BookingRepo
	escrowRepo   *repositories.EscrowRepo
	meetingRepo  *repositories.MeetingRepo
	auditRepo    *repositories.AuditRepo
	availability *AvailabilityService
	gateway      *GatewayClient
	notifier     *NotifierClient
	publisher    events.Publisher
	cfg          *config.Config
	log          *zap.Logger
}

func NewNegotiationService(
	pool *pgxpool.Pool,
	requestRepo *repositories.RequestRepo,
	propertyRepo *repositories.PropertyRepo,
	bookingRepo *repositories.BookingRepo,
	escrowRepo *repositories.EscrowRepo,
	meetingRepo *repositories.MeetingRepo,
	auditRepo *repositories.AuditRepo,
	availability *AvailabilityService,
	gateway *GatewayClient,
	notifier *NotifierClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *NegotiationService {
	return &NegotiationService{
		pool:         pool,
		requestRepo:  requestRepo,
		propertyRepo: propertyRepo,
		bookingRepo:  bookingRepo,
		escrowRepo:   escrowRepo,
		meetingRepo:  meetingRepo,
		auditRepo:    auditRepo,
		availability: availability,
		gateway:      gateway,
		notifier:     notifier,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
	}
}

// publishRequestChange emits the status-change event after the transaction
// committed; subscribers never observe uncommitted state.
func (s *NegotiationService) publishRequestChange(ctx context.Context, requestID uuid.UUID, parties []string, oldStatus, newStatus string) {
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventRequestStatusChanged,
		Parties: parties,
		Payload: map[string]any{
			"request_id": requestID.String(),
			"old_status": oldStatus,
			"new_status": newStatus,
		},
	})
}

// partyList renders the users an event concerns for WS delivery scoping.
func partyList(ids ...uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			out = append(out, id.String())
		}
	}
	return out
}

// Create opens a negotiation: validates the package selection, prices the
// request from the tier, writes the request plus its unpaid escrow entry, and
// fires the collection prompt at the seeker's phone.
func (s *NegotiationService) Create(ctx context.Context, seekerID, propertyID, tierID uuid.UUID, slots []models.ProposedSlot, payerMSISDN string) (*models.ViewingRequest, error) {
	if len(slots) == 0 {
		return nil, apperr.ErrNoScheduleAvailable
	}

	tier, err := s.availability.ValidateSelection(ctx, propertyID, tierID)
	if err != nil {
		return nil, err
	}

	prop, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if prop.AgentID == seekerID {
		return nil, apperr.New(apperr.KindAuthorization, "agents cannot request viewings of their own listings")
	}

	dup, err := s.requestRepo.HasActiveRequest(ctx, seekerID, propertyID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if dup {
		return nil, apperr.ErrDuplicateRequest
	}

	req := &models.ViewingRequest{
		PropertyID:    propertyID,
		RequesterID:   seekerID,
		AgentID:       prop.AgentID,
		PackageID:     tier.ID,
		AmountKES:     tier.PriceKES,
		Status:        models.RequestStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		ProposedSlots: slots,
	}

	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.requestRepo.WithTx(tx).Create(ctx, req); err != nil {
			return err
		}
		entry := &models.EscrowEntry{
			RequestID: req.ID,
			AmountKES: req.AmountKES,
			Status:    models.EscrowStatusUnpaid,
		}
		return s.escrowRepo.WithTx(tx).Create(ctx, entry)
	})
	if err != nil {
		// The partial unique index on (requester, property) backstops the
		// read above against two concurrent submissions.
		if repositories.IsUniqueViolation(err) {
			return nil, apperr.ErrDuplicateRequest
		}
		return nil, apperr.Infra(err)
	}

	_ = s.auditRepo.Log(ctx, &seekerID, models.ActorUser, "request_created", "request", &req.ID,
		map[string]any{"property_id": propertyID.String(), "amount_kes": req.AmountKES})

	if _, err := s.gateway.InitiateSTKPush(ctx, payerMSISDN, req.AmountKES, req.ID.String()); err != nil {
		// The request stays unpaid; the seeker can retry payment.
		s.log.Warn("stk push failed", zap.String("request_id", req.ID.String()), zap.Error(err))
	}

	s.notifier.Notify(ctx, req.AgentID, "viewing_request_received", map[string]any{
		"request_id": req.ID.String(),
	})
	return req, nil
}

// RetryPayment re-fires the collection prompt for a still-unpaid request.
func (s *NegotiationService) RetryPayment(ctx context.Context, requestID, seekerID uuid.UUID, payerMSISDN string) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if req.RequesterID != seekerID {
		return apperr.ErrSeekerOnly
	}
	if req.PaymentStatus != models.PaymentStatusUnpaid || models.IsTerminalRequestStatus(req.Status) {
		return apperr.ErrInvalidTransition
	}
	if _, err := s.gateway.InitiateSTKPush(ctx, payerMSISDN, req.AmountKES, req.ID.String()); err != nil {
		return apperr.New(apperr.KindInfrastructure, "payment prompt failed: %s", err)
	}
	return nil
}

// ConfirmPayment is the gateway callback path: flip the escrow entry to held
// and the request to escrow-backed. Redelivered receipts are acknowledged
// without side effects. A payment landing on an already-terminal request is
// refunded immediately.
func (s *NegotiationService) ConfirmPayment(ctx context.Context, requestID uuid.UUID, receipt, msisdn string) error {
	entry, err := s.escrowRepo.GetActiveByRequestID(ctx, requestID)
	if err != nil {
		return apperr.ErrNotFound
	}

	held, err := s.escrowRepo.MarkHeld(ctx, entry.ID, receipt, msisdn)
	if err != nil {
		return apperr.Infra(err)
	}
	if !held {
		if entry.GatewayReceipt != nil && *entry.GatewayReceipt == receipt {
			return nil // redelivery
		}
		return apperr.ErrAlreadyFinalized
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return apperr.Infra(err)
	}
	if models.IsTerminalRequestStatus(req.Status) {
		// Negotiation died while the prompt was pending on the handset.
		if _, err := s.escrowRepo.MarkRefunded(ctx, entry.ID); err != nil {
			return apperr.Infra(err)
		}
		if err := s.requestRepo.SetPaymentStatus(ctx, requestID, models.PaymentStatusRefunded); err != nil {
			return apperr.Infra(err)
		}
		_ = s.auditRepo.Log(ctx, nil, models.ActorSystem, "payment_refunded_terminal_request", "escrow", &entry.ID, nil)
		_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
			Type:    events.EventPaymentRefunded,
			Parties: partyList(req.RequesterID, req.AgentID),
			Payload: map[string]any{"request_id": requestID.String()},
		})
		return nil
	}

	if err := s.requestRepo.SetPaymentStatus(ctx, requestID, models.PaymentStatusEscrow); err != nil {
		return apperr.Infra(err)
	}

	_ = s.auditRepo.Log(ctx, nil, models.ActorSystem, "payment_held", "escrow", &entry.ID,
		map[string]any{"receipt": receipt})
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventPaymentHeld,
		Parties: partyList(req.RequesterID, req.AgentID),
		Payload: map[string]any{"request_id": requestID.String(), "amount_kes": entry.AmountKES},
	})
	s.notifier.Notify(ctx, req.AgentID, "viewing_payment_held", map[string]any{
		"request_id": requestID.String(),
	})
	return nil
}

// Counter attaches a counter-proposal from either party. Counter rounds may
// repeat; authorship travels with the proposal so acceptance is always checked
// against the side that did not author the active schedule.
func (s *NegotiationService) Counter(ctx context.Context, requestID, userID uuid.UUID, date, timeWindow string, location *models.GeoPoint) (*models.ViewingRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !req.IsParty(userID) {
		return nil, apperr.ErrNotParty
	}
	if !models.IsValidRequestTransition(req.Status, models.RequestStatusCountered) {
		return nil, apperr.ErrInvalidTransition
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

	oldStatus := req.Status
	ok, err := s.requestRepo.SetCounter(ctx, requestID, req.Status, counter)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if !ok {
		return nil, apperr.ErrInvalidTransition
	}
	req.Status = models.RequestStatusCountered
	req.Counter = counter

	_ = s.auditRepo.Log(ctx, &userID, models.ActorUser, "request_countered", "request", &req.ID,
		map[string]any{"date": date, "time_window": timeWindow})
	s.publishRequestChange(ctx, req.ID, partyList(req.RequesterID, req.AgentID), oldStatus, req.Status)
	s.notifier.Notify(ctx, req.Counterparty(userID), "viewing_counter_proposed", map[string]any{
		"request_id": req.ID.String(),
	})
	return req, nil
}

// acceptSchedule picks the slot an acceptance settles on. Priority: an
// explicit override from the accepting party, then the active
// counter-proposal, then the indexed original slot.
func acceptSchedule(req *models.ViewingRequest, slotIndex int, overrideDate, overrideWindow string) (string, string, error) {
	switch {
	case overrideDate != "" && overrideWindow != "":
		return overrideDate, overrideWindow, nil
	case overrideDate != "" || overrideWindow != "":
		return "", "", apperr.New(apperr.KindValidation, "an explicit schedule needs both a date and a time window")
	case req.Counter != nil:
		return req.Counter.Date, req.Counter.TimeWindow, nil
	default:
		if slotIndex < 0 || slotIndex >= len(req.ProposedSlots) {
			return "", "", apperr.ErrNoScheduleAvailable
		}
		return req.ProposedSlots[slotIndex].Date, req.ProposedSlots[slotIndex].TimeWindow, nil
	}
}

// Accept closes the negotiation. In one transaction it re-reads the request
// under lock, verifies the caller is not the active proposer and the money is
// held, locks the property, flips the request, spawns the confirmed booking
// and binds the escrow entry to it. An explicit overrideDate/overrideWindow
// pair wins over any counter on the table; otherwise the counter wins, and
// slotIndex picks among the original slots as the fallback.
func (s *NegotiationService) Accept(ctx context.Context, requestID, userID uuid.UUID, slotIndex int, overrideDate, overrideWindow string) (*models.Booking, error) {
	var booking *models.Booking
	var oldStatus string

	err := repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		requests := s.requestRepo.WithTx(tx)
		req, err := requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return apperr.ErrNotFound
		}
		if !req.IsParty(userID) {
			return apperr.ErrNotParty
		}
		if !models.IsValidRequestTransition(req.Status, models.RequestStatusAccepted) {
			return apperr.ErrInvalidTransition
		}
		if req.ActiveProposer() == userID {
			return apperr.ErrSelfAcceptance
		}
		if req.PaymentStatus != models.PaymentStatusEscrow {
			return apperr.ErrPaymentRequired
		}

		date, window, err := acceptSchedule(req, slotIndex, overrideDate, overrideWindow)
		if err != nil {
			return err
		}
		start, end, err := splitWindow(window)
		if err != nil {
			return apperr.New(apperr.KindValidation, "invalid time window %q", window)
		}
		end, err = endOfWindow(date, start, end, s.cfg.DefaultViewingMins)
		if err != nil {
			return apperr.New(apperr.KindValidation, "%s", err)
		}
		releaseAt, err := autoReleaseAt(date, end, s.cfg.GracePeriod)
		if err != nil {
			return apperr.New(apperr.KindValidation, "%s", err)
		}

		locked, err := s.propertyRepo.WithTx(tx).Lock(ctx, req.PropertyID)
		if err != nil {
			return err
		}
		if !locked {
			return apperr.ErrPropertyLocked
		}

		oldStatus = req.Status
		ok, err := requests.UpdateStatus(ctx, req.ID, req.Status, models.RequestStatusAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvalidTransition
		}

		booking = &models.Booking{
			RequestID:        req.ID,
			PropertyID:       req.PropertyID,
			SeekerID:         req.RequesterID,
			AgentID:          req.AgentID,
			AmountKES:        req.AmountKES,
			Status:           models.BookingStatusConfirmed,
			PaymentStatus:    models.BookingPaymentEscrow,
			ScheduledDate:    date,
			ScheduledTime:    start,
			ScheduledEndTime: end,
			AutoReleaseAt:    releaseAt,
		}
		if err := s.bookingRepo.WithTx(tx).Create(ctx, booking); err != nil {
			return err
		}

		escrows := s.escrowRepo.WithTx(tx)
		entry, err := escrows.GetActiveByRequestID(ctx, req.ID)
		if err != nil {
			return err
		}
		if err := escrows.AttachBooking(ctx, entry.ID, booking.ID); err != nil {
			return err
		}

		// Every booking starts with a meeting point. Default is the property
		// itself; a counter-proposal location makes it a landmark meet.
		point := &models.MeetingPoint{
			BookingID:  booking.ID,
			Type:       models.MeetingAtProperty,
			ProposedBy: req.ActiveProposer(),
			AckStatus:  models.MeetingAckAccepted,
		}
		if req.Counter != nil && req.Counter.Location != nil {
			point.Type = models.MeetingLandmark
			point.Location = req.Counter.Location
		}
		if err := s.meetingRepo.WithTx(tx).Upsert(ctx, point); err != nil {
			return err
		}

		return s.auditRepo.WithTx(tx).Log(ctx, &userID, models.ActorUser, "request_accepted", "request", &req.ID,
			map[string]any{"booking_id": booking.ID.String(), "date": date, "window": window})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return nil, apperr.Infra(err)
		}
		return nil, err
	}

	s.publishRequestChange(ctx, requestID, partyList(booking.SeekerID, booking.AgentID), oldStatus, models.RequestStatusAccepted)
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventBookingStatusChanged,
		Parties: partyList(booking.SeekerID, booking.AgentID),
		Payload: map[string]any{
			"booking_id": booking.ID.String(),
			"new_status": models.BookingStatusConfirmed,
		},
	})
	s.notifier.Notify(ctx, booking.SeekerID, "viewing_booked", map[string]any{"booking_id": booking.ID.String()})
	s.notifier.Notify(ctx, booking.AgentID, "viewing_booked", map[string]any{"booking_id": booking.ID.String()})
	return booking, nil
}

// Reject resolves the negotiation against the seeker; only the listing agent
// may reject. Held money is refunded.
func (s *NegotiationService) Reject(ctx context.Context, requestID, userID uuid.UUID) error {
	return s.resolve(ctx, requestID, models.RequestStatusRejected, func(req *models.ViewingRequest) error {
		if userID != req.AgentID {
			return apperr.ErrAgentOnly
		}
		return nil
	}, &userID, models.ActorUser)
}

// Cancel withdraws the seeker's own request. Held money is refunded.
func (s *NegotiationService) Cancel(ctx context.Context, requestID, userID uuid.UUID) error {
	return s.resolve(ctx, requestID, models.RequestStatusCancelled, func(req *models.ViewingRequest) error {
		if userID != req.RequesterID {
			return apperr.ErrSeekerOnly
		}
		return nil
	}, &userID, models.ActorUser)
}

// ExpireStale system-cancels a request whose negotiation went quiet past the
// expiry horizon. Held money is refunded.
func (s *NegotiationService) ExpireStale(ctx context.Context, requestID uuid.UUID) error {
	return s.resolve(ctx, requestID, models.RequestStatusCancelled, func(*models.ViewingRequest) error {
		return nil
	}, nil, models.ActorSystem)
}

// resolve is the shared terminal path for reject/cancel/expire: one
// transaction flips the request and refunds a held escrow entry.
func (s *NegotiationService) resolve(ctx context.Context, requestID uuid.UUID, to string, authorize func(*models.ViewingRequest) error, actorID *uuid.UUID, actorType string) error {
	var oldStatus string
	var refunded bool
	var counterparty uuid.UUID
	var parties []string

	err := repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		requests := s.requestRepo.WithTx(tx)
		req, err := requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return apperr.ErrNotFound
		}
		if err := authorize(req); err != nil {
			return err
		}
		parties = partyList(req.RequesterID, req.AgentID)
		if !models.IsValidRequestTransition(req.Status, to) {
			return apperr.ErrInvalidTransition
		}

		oldStatus = req.Status
		ok, err := requests.UpdateStatus(ctx, req.ID, req.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvalidTransition
		}

		if req.PaymentStatus == models.PaymentStatusEscrow {
			escrows := s.escrowRepo.WithTx(tx)
			entry, err := escrows.GetActiveByRequestID(ctx, req.ID)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				// Substitute requests spawned by an alternative offer carry
				// no entry of their own before acceptance; the money stays
				// held on the original booking, so nothing moves here.
			case err != nil:
				return err
			default:
				done, err := escrows.MarkRefunded(ctx, entry.ID)
				if err != nil {
					return err
				}
				if !done {
					return apperr.ErrAlreadyFinalized
				}
				if err := requests.SetPaymentStatus(ctx, req.ID, models.PaymentStatusRefunded); err != nil {
					return err
				}
				refunded = true
			}
		}

		if actorID != nil {
			counterparty = req.Counterparty(*actorID)
		}
		return s.auditRepo.WithTx(tx).Log(ctx, actorID, actorType,
			fmt.Sprintf("request_%s_to_%s", oldStatus, to), "request", &req.ID, nil)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.Infra(err)
		}
		return err
	}

	s.publishRequestChange(ctx, requestID, parties, oldStatus, to)
	if refunded {
		_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
			Type:    events.EventPaymentRefunded,
			Parties: parties,
			Payload: map[string]any{"request_id": requestID.String()},
		})
	}
	if counterparty != uuid.Nil {
		s.notifier.Notify(ctx, counterparty, "viewing_request_closed", map[string]any{
			"request_id": requestID.String(),
			"status":     to,
		})
	}
	return nil
}

// Hide soft-hides a resolved request from one party's inbox; the row and its
// audit trail survive.
func (s *NegotiationService) Hide(ctx context.Context, requestID, userID uuid.UUID) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if !req.IsParty(userID) {
		return apperr.ErrNotParty
	}
	if !models.IsTerminalRequestStatus(req.Status) {
		return apperr.ErrInvalidTransition
	}
	return s.requestRepo.SetHidden(ctx, requestID, userID == req.RequesterID)
}

func (s *NegotiationService) Get(ctx context.Context, requestID, userID uuid.UUID, isAdmin bool) (*models.ViewingRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isAdmin && !req.IsParty(userID) {
		return nil, apperr.ErrNotParty
	}
	return req, nil
}

// Events returns the request's audit trail, newest first. Party-scoped like Get.
func (s *NegotiationService) Events(ctx context.Context, requestID, userID uuid.UUID, isAdmin bool, limit int) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, requestID, userID, isAdmin); err != nil {
		return nil, err
	}
	out, err := s.auditRepo.ListByEntity(ctx, "request", requestID, limit)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return out, nil
}

func (s *NegotiationService) List(ctx context.Context, f repositories.RequestFilter) ([]models.RequestWithProperty, error) {
	out, err := s.requestRepo.ListWithProperty(ctx, f)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return out, nil
}
