package services

import (
	"context"
	"fmt"

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

// BookingService owns the confirmed-viewing lifecycle: arrival confirmation,
// meeting points, outcome submission, cancellation, and the two terminal money
// movements (release and refund). Release and refund are each a single
// transaction guarded by conditional updates, so concurrent finalizers get
// exactly one winner.
type BookingService struct {
	pool         *pgxpool.Pool
	bookingRepo  *repositories.BookingRepo
	requestRepo  *repositories.RequestRepo
	propertyRepo *repositories.PropertyRepo
	escrowRepo   *repositories.EscrowRepo
	earningRepo  *repositories.EarningRepo
	payoutRepo   *repositories.PayoutRepo
	meetingRepo  *repositories.MeetingRepo
	disputeRepo  *repositories.DisputeRepo
	auditRepo    *repositories.AuditRepo
	gateway      *GatewayClient
	notifier     *NotifierClient
	publisher    events.Publisher
	cfg          *config.Config
	log          *zap.Logger
}

func NewBookingService(
	pool *pgxpool.Pool,
	bookingRepo *repositories.BookingRepo,
	requestRepo *repositories.RequestRepo,
	propertyRepo *repositories.PropertyRepo,
	escrowRepo *repositories.EscrowRepo,
	earningRepo *repositories.EarningRepo,
	payoutRepo *repositories.PayoutRepo,
	meetingRepo *repositories.MeetingRepo,
	disputeRepo *repositories.DisputeRepo,
	auditRepo *repositories.AuditRepo,
	gateway *GatewayClient,
	notifier *NotifierClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		pool:         pool,
		bookingRepo:  bookingRepo,
		requestRepo:  requestRepo,
		propertyRepo: propertyRepo,
		escrowRepo:   escrowRepo,
		earningRepo:  earningRepo,
		payoutRepo:   payoutRepo,
		meetingRepo:  meetingRepo,
		disputeRepo:  disputeRepo,
		auditRepo:    auditRepo,
		gateway:      gateway,
		notifier:     notifier,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
	}
}

func isBookingParty(b *models.Booking, userID uuid.UUID) bool {
	return userID == b.SeekerID || userID == b.AgentID
}

func (s *BookingService) publishBookingChange(ctx context.Context, b *models.Booking, newStatus string) {
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventBookingStatusChanged,
		Parties: partyList(b.SeekerID, b.AgentID),
		Payload: map[string]any{
			"booking_id": b.ID.String(),
			"new_status": newStatus,
		},
	})
}

func (s *BookingService) Get(ctx context.Context, bookingID, userID uuid.UUID, isAdmin bool) (*models.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isAdmin && !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	return b, nil
}

// Events returns the booking's audit trail, newest first. Party-scoped like Get.
func (s *BookingService) Events(ctx context.Context, bookingID, userID uuid.UUID, isAdmin bool, limit int) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, bookingID, userID, isAdmin); err != nil {
		return nil, err
	}
	out, err := s.auditRepo.ListByEntity(ctx, "booking", bookingID, limit)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return out, nil
}

func (s *BookingService) List(ctx context.Context, f repositories.BookingFilter) ([]models.BookingWithProperty, error) {
	out, err := s.bookingRepo.ListWithProperty(ctx, f)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return out, nil
}

// ConfirmArrival records one party's arrival; when both parties have arrived
// the physical meeting is confirmed and the viewing clock starts. Repeated
// calls are no-ops.
func (s *BookingService) ConfirmArrival(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil, apperr.ErrInvalidTransition
	}

	if err := s.bookingRepo.ConfirmArrival(ctx, bookingID, userID == b.SeekerID); err != nil {
		return nil, apperr.Infra(err)
	}

	b, err = s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}

	_ = s.auditRepo.Log(ctx, &userID, models.ActorUser, "arrival_confirmed", "booking", &bookingID,
		map[string]any{"both_arrived": b.PhysicalMeetingConfirmed})
	if b.PhysicalMeetingConfirmed {
		s.notifier.Notify(ctx, b.SeekerID, "viewing_started", map[string]any{"booking_id": bookingID.String()})
		s.notifier.Notify(ctx, b.AgentID, "viewing_started", map[string]any{"booking_id": bookingID.String()})
	}
	return b, nil
}

// ProposeMeetingPoint sets or replaces where the parties meet. Allowed until
// the physical meeting is confirmed; a re-proposal resets the counterparty's
// acknowledgment.
func (s *BookingService) ProposeMeetingPoint(ctx context.Context, bookingID, userID uuid.UUID, pointType string, location *models.GeoPoint) (*models.MeetingPoint, error) {
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
	if pointType != models.MeetingAtProperty && pointType != models.MeetingLandmark {
		return nil, apperr.New(apperr.KindValidation, "invalid meeting point type %q", pointType)
	}
	if pointType == models.MeetingLandmark && location == nil {
		return nil, apperr.New(apperr.KindValidation, "landmark meeting point requires a location")
	}

	m := &models.MeetingPoint{
		BookingID:  bookingID,
		Type:       pointType,
		Location:   location,
		ProposedBy: userID,
		AckStatus:  models.MeetingAckPending,
	}
	if err := s.meetingRepo.Upsert(ctx, m); err != nil {
		return nil, apperr.Infra(err)
	}

	counterparty := b.AgentID
	if userID == b.AgentID {
		counterparty = b.SeekerID
	}
	s.notifier.Notify(ctx, counterparty, "meeting_point_proposed", map[string]any{
		"booking_id": bookingID.String(),
	})
	return m, nil
}

// AckMeetingPoint records the counterparty's accept/reject of the proposed
// meeting point.
func (s *BookingService) AckMeetingPoint(ctx context.Context, bookingID, userID uuid.UUID, accept bool) error {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return apperr.ErrNotParty
	}
	m, err := s.meetingRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if m.ProposedBy == userID {
		return apperr.ErrWrongParty
	}

	ack := models.MeetingAckRejected
	if accept {
		ack = models.MeetingAckAccepted
	}
	ok, err := s.meetingRepo.SetAck(ctx, bookingID, ack)
	if err != nil {
		return apperr.Infra(err)
	}
	if !ok {
		return apperr.ErrInvalidTransition
	}
	s.notifier.Notify(ctx, m.ProposedBy, "meeting_point_"+ack, map[string]any{
		"booking_id": bookingID.String(),
	})
	return nil
}

func (s *BookingService) MeetingPoint(ctx context.Context, bookingID, userID uuid.UUID) (*models.MeetingPoint, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	m, err := s.meetingRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return m, nil
}

// SubmitOutcome records the seeker's verdict after the physical meeting. A
// satisfied outcome releases the escrow immediately; issue_reported and
// alternative_requested leave the money held for the dispute or alternative
// flow. The outcome stamp and its consequence commit in one transaction, so
// a transient failure leaves the outcome unset and the whole call retryable.
func (s *BookingService) SubmitOutcome(ctx context.Context, bookingID, userID uuid.UUID, outcome string) error {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if userID != b.SeekerID {
		return apperr.ErrSeekerOnly
	}
	if !models.IsValidOutcome(outcome) {
		return apperr.New(apperr.KindValidation, "invalid outcome %q", outcome)
	}

	var (
		released *models.Booking
		net      int64
		dispute  *models.Dispute
	)
	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := s.bookingRepo.WithTx(tx).SetOutcome(ctx, bookingID, outcome)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrOutcomeConflict
		}
		if err := s.auditRepo.WithTx(tx).Log(ctx, &userID, models.ActorUser, "outcome_submitted", "booking", &bookingID,
			map[string]any{"outcome": outcome}); err != nil {
			return err
		}

		switch outcome {
		case models.OutcomeCompletedSatisfied:
			released, net, err = s.releaseTx(ctx, tx, bookingID, &userID, models.ActorUser)
			return err
		case models.OutcomeIssueReported:
			// A reported issue opens the dispute itself; evidence can be
			// attached through the dispute endpoints afterwards.
			dispute, err = s.openDisputeTx(ctx, tx, b, userID, models.DisputeViewingIssue,
				"issue reported as the viewing outcome")
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.Infra(err)
		}
		return err
	}

	switch outcome {
	case models.OutcomeCompletedSatisfied:
		s.announceRelease(ctx, released, net)
	case models.OutcomeIssueReported:
		if dispute != nil {
			s.publishDispute(ctx, b, dispute)
		}
		s.notifier.Notify(ctx, b.AgentID, "viewing_issue_reported", map[string]any{"booking_id": bookingID.String()})
	case models.OutcomeAlternativeRequested:
		s.notifier.Notify(ctx, b.AgentID, "alternative_requested", map[string]any{"booking_id": bookingID.String()})
	}
	return nil
}

// openDisputeTx raises a dispute and moves the booking to disputed inside the
// caller's transaction. Returns nil when one is already open.
func (s *BookingService) openDisputeTx(ctx context.Context, tx pgx.Tx, b *models.Booking, raisedBy uuid.UUID, category, description string) (*models.Dispute, error) {
	open, err := s.disputeRepo.WithTx(tx).HasOpenByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, nil
	}
	dispute := &models.Dispute{
		BookingID:   b.ID,
		RaisedBy:    raisedBy,
		Category:    category,
		Description: description,
		Status:      models.DisputeStatusOpen,
	}
	if err := s.disputeRepo.WithTx(tx).Create(ctx, dispute); err != nil {
		return nil, err
	}
	if _, err := s.bookingRepo.WithTx(tx).MarkDisputed(ctx, b.ID); err != nil {
		return nil, err
	}
	if err := s.auditRepo.WithTx(tx).Log(ctx, &raisedBy, models.ActorUser, "dispute_opened", "dispute", &dispute.ID,
		map[string]any{"booking_id": b.ID.String(), "category": category}); err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *BookingService) publishDispute(ctx context.Context, b *models.Booking, d *models.Dispute) {
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventDisputeUpdated,
		Parties: partyList(b.SeekerID, b.AgentID),
		Payload: map[string]any{
			"dispute_id": d.ID.String(),
			"booking_id": b.ID.String(),
			"category":   d.Category,
			"status":     d.Status,
		},
	})
}

// Release is the single path that moves a booking's escrow to the agent:
// outcome satisfaction, auto-release by the sweeper, and admin dispute
// resolution all land here. The conditional booking and escrow updates make
// concurrent callers race to one winner; losers get ErrAlreadyFinalized.
func (s *BookingService) Release(ctx context.Context, bookingID uuid.UUID, actorID *uuid.UUID, actorType string) error {
	var b *models.Booking
	var net int64

	err := repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		b, net, err = s.releaseTx(ctx, tx, bookingID, actorID, actorType)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.Infra(err)
		}
		return err
	}

	s.announceRelease(ctx, b, net)
	return nil
}

// releaseTx is the release core, run inside the caller's transaction so that
// gating writes (an outcome stamp, a dispute resolution) commit atomically
// with the money movement. Returns the pre-release booking snapshot.
func (s *BookingService) releaseTx(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, actorID *uuid.UUID, actorType string) (*models.Booking, int64, error) {
	bookings := s.bookingRepo.WithTx(tx)
	b, err := bookings.GetByIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, 0, apperr.ErrNotFound
	}

	// A no-show booking is already cancelled with the payment frozen;
	// an admin resolution settles the money without reviving the booking.
	var done bool
	if b.Status == models.BookingStatusCancelled {
		done, err = bookings.SettleCancelled(ctx, bookingID, models.BookingPaymentReleased)
	} else {
		done, err = bookings.FinalizeCompleted(ctx, bookingID)
	}
	if err != nil {
		return nil, 0, err
	}
	if !done {
		return nil, 0, apperr.ErrAlreadyFinalized
	}

	escrows := s.escrowRepo.WithTx(tx)
	entry, err := escrows.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, 0, err
	}
	released, err := escrows.MarkReleased(ctx, entry.ID, false)
	if err != nil {
		return nil, 0, err
	}
	if !released {
		return nil, 0, apperr.ErrAlreadyFinalized
	}

	net := models.EarningNet(b.AmountKES, s.cfg.CommissionBPS)
	earning := &models.AgentEarning{
		AgentID:       b.AgentID,
		BookingID:     b.ID,
		GrossKES:      b.AmountKES,
		CommissionBPS: s.cfg.CommissionBPS,
		NetKES:        net,
	}
	if err := s.earningRepo.WithTx(tx).Create(ctx, earning); err != nil {
		return nil, 0, err
	}

	if err := s.requestRepo.WithTx(tx).SetPaymentStatus(ctx, b.RequestID, models.PaymentStatusPaid); err != nil {
		return nil, 0, err
	}
	if err := s.propertyRepo.WithTx(tx).Unlock(ctx, b.PropertyID); err != nil {
		return nil, 0, err
	}

	if err := s.auditRepo.WithTx(tx).Log(ctx, actorID, actorType, "escrow_released", "booking", &bookingID,
		map[string]any{"gross_kes": b.AmountKES, "net_kes": net}); err != nil {
		return nil, 0, err
	}
	return b, net, nil
}

// announceRelease publishes the post-commit events and kicks the best-effort
// B2C payout. b is the pre-release snapshot from releaseTx.
func (s *BookingService) announceRelease(ctx context.Context, b *models.Booking, net int64) {
	if b.Status != models.BookingStatusCancelled {
		s.publishBookingChange(ctx, b, models.BookingStatusCompleted)
	}
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventPaymentReleased,
		Parties: partyList(b.SeekerID, b.AgentID),
		Payload: map[string]any{"booking_id": b.ID.String(), "net_kes": net},
	})
	s.notifier.Notify(ctx, b.AgentID, "earning_released", map[string]any{
		"booking_id": b.ID.String(),
		"net_kes":    net,
	})

	// Payout is best-effort; the earning row survives a gateway outage.
	if account, err := s.payoutRepo.GetByAgent(ctx, b.AgentID); err == nil && account.Status == models.PayoutStatusVerified {
		if err := s.gateway.InitiateB2C(ctx, account.MSISDN, net, fmt.Sprintf("viewing %s", b.ID)); err != nil {
			s.log.Warn("b2c payout failed", zap.String("booking_id", b.ID.String()), zap.Error(err))
		}
	}
}

// Refund cancels the booking and returns the escrow to the seeker. Used for
// pre-meeting cancellation and admin dispute resolution.
func (s *BookingService) Refund(ctx context.Context, bookingID uuid.UUID, actorID *uuid.UUID, actorType string) error {
	var b *models.Booking

	err := repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		b, err = s.refundTx(ctx, tx, bookingID, actorID, actorType)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.Infra(err)
		}
		return err
	}

	s.announceRefund(ctx, b)
	return nil
}

// refundTx is the refund core, transaction-scoped for the same reason as
// releaseTx.
func (s *BookingService) refundTx(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, actorID *uuid.UUID, actorType string) (*models.Booking, error) {
	bookings := s.bookingRepo.WithTx(tx)
	b, err := bookings.GetByIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var done bool
	if b.Status == models.BookingStatusCancelled {
		// Frozen no-show payment; the admin ruled for the seeker.
		done, err = bookings.SettleCancelled(ctx, bookingID, models.BookingPaymentRefunded)
	} else {
		if !models.IsValidBookingTransition(b.Status, models.BookingStatusCancelled) {
			return nil, apperr.ErrInvalidTransition
		}
		done, err = bookings.MarkCancelled(ctx, bookingID, b.Status, models.BookingPaymentRefunded)
	}
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, apperr.ErrAlreadyFinalized
	}

	escrows := s.escrowRepo.WithTx(tx)
	entry, err := escrows.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	refunded, err := escrows.MarkRefunded(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if !refunded {
		return nil, apperr.ErrAlreadyFinalized
	}

	if err := s.requestRepo.WithTx(tx).SetPaymentStatus(ctx, b.RequestID, models.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	if err := s.propertyRepo.WithTx(tx).Unlock(ctx, b.PropertyID); err != nil {
		return nil, err
	}

	if err := s.auditRepo.WithTx(tx).Log(ctx, actorID, actorType, "escrow_refunded", "booking", &bookingID,
		map[string]any{"amount_kes": b.AmountKES}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BookingService) announceRefund(ctx context.Context, b *models.Booking) {
	s.publishBookingChange(ctx, b, models.BookingStatusCancelled)
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventPaymentRefunded,
		Parties: partyList(b.SeekerID, b.AgentID),
		Payload: map[string]any{"booking_id": b.ID.String()},
	})
	s.notifier.Notify(ctx, b.SeekerID, "viewing_refunded", map[string]any{"booking_id": b.ID.String()})
}

// Cancel lets a party abandon a booking before the physical meeting. The
// seeker gets their money back; after the meeting is confirmed the outcome
// and dispute flows take over.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uuid.UUID) error {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return apperr.ErrNotParty
	}
	if b.Status != models.BookingStatusConfirmed || b.PhysicalMeetingConfirmed {
		return apperr.ErrInvalidTransition
	}
	return s.Refund(ctx, bookingID, &userID, models.ActorUser)
}

// ReportNoShow cancels the booking, unlocks the property, and opens a no-show
// dispute. The payment stays frozen in escrow until an admin rules on the
// dispute; a no-show never moves money on its own.
func (s *BookingService) ReportNoShow(ctx context.Context, bookingID, reporterID uuid.UUID) error {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if !isBookingParty(b, reporterID) {
		return apperr.ErrNotParty
	}
	if b.Status != models.BookingStatusConfirmed {
		return apperr.ErrInvalidTransition
	}

	category := models.DisputeNoShowSeeker
	counterpart := b.SeekerID
	if reporterID == b.SeekerID {
		category = models.DisputeNoShowAgent
		counterpart = b.AgentID
	}

	var dispute *models.Dispute
	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		open, err := s.disputeRepo.WithTx(tx).HasOpenByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if open {
			return apperr.ErrDisputePending
		}

		done, err := s.bookingRepo.WithTx(tx).CancelFrozen(ctx, bookingID, models.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		if !done {
			return apperr.ErrAlreadyFinalized
		}

		dispute = &models.Dispute{
			BookingID:   bookingID,
			RaisedBy:    reporterID,
			Category:    category,
			Description: "counterpart did not arrive for the scheduled viewing",
			Status:      models.DisputeStatusOpen,
		}
		if err := s.disputeRepo.WithTx(tx).Create(ctx, dispute); err != nil {
			return err
		}

		if err := s.propertyRepo.WithTx(tx).Unlock(ctx, b.PropertyID); err != nil {
			return err
		}

		return s.auditRepo.WithTx(tx).Log(ctx, &reporterID, models.ActorUser, "no_show_reported", "booking", &bookingID,
			map[string]any{"category": category, "dispute_id": dispute.ID.String()})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.Infra(err)
		}
		return err
	}

	s.publishBookingChange(ctx, b, models.BookingStatusCancelled)
	s.publishDispute(ctx, b, dispute)
	s.notifier.Notify(ctx, counterpart, "no_show_reported", map[string]any{
		"booking_id": bookingID.String(),
		"category":   category,
	})
	return nil
}
