package services

import (
	"context"

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

// DisputeService freezes and arbitrates contested bookings. An open dispute
// suspends auto-release; money only moves when an admin resolves with release
// or refund. Dismiss closes the dispute without moving funds, leaving the
// booking to the admin's follow-up action.
type DisputeService struct {
	pool        *pgxpool.Pool
	disputeRepo *repositories.DisputeRepo
	bookingRepo *repositories.BookingRepo
	auditRepo   *repositories.AuditRepo
	bookings    *BookingService
	notifier    *NotifierClient
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewDisputeService(
	pool *pgxpool.Pool,
	disputeRepo *repositories.DisputeRepo,
	bookingRepo *repositories.BookingRepo,
	auditRepo *repositories.AuditRepo,
	bookings *BookingService,
	notifier *NotifierClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		pool:        pool,
		disputeRepo: disputeRepo,
		bookingRepo: bookingRepo,
		auditRepo:   auditRepo,
		bookings:    bookings,
		notifier:    notifier,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

func (s *DisputeService) publishUpdate(ctx context.Context, disputeID uuid.UUID, parties []string, status string) {
	_ = s.publisher.Publish(ctx, events.StreamViewing, events.Event{
		Type:    events.EventDisputeUpdated,
		Parties: parties,
		Payload: map[string]any{
			"dispute_id": disputeID.String(),
			"status":     status,
		},
	})
}

// bookingParties resolves the two sides of a dispute's booking for event
// scoping; a lookup failure just widens delivery.
func (s *DisputeService) bookingParties(ctx context.Context, bookingID uuid.UUID) []string {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil
	}
	return partyList(b.SeekerID, b.AgentID)
}

// Open raises a dispute on a still-escrowed booking and moves the booking to
// disputed so the sweeper skips it. No-show reports come through here with the
// no_show categories.
func (s *DisputeService) Open(ctx context.Context, bookingID, userID uuid.UUID, category, description string, evidenceRefs []string) (*models.Dispute, error) {
	if !models.IsValidDisputeCategory(category) {
		return nil, apperr.New(apperr.KindValidation, "invalid dispute category %q", category)
	}

	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isBookingParty(b, userID) {
		return nil, apperr.ErrNotParty
	}
	if b.PaymentStatus != models.BookingPaymentEscrow {
		return nil, apperr.ErrAlreadyFinalized
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil, apperr.ErrInvalidTransition
	}

	open, err := s.disputeRepo.HasOpenByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	if open {
		return nil, apperr.ErrDisputePending
	}

	d := &models.Dispute{
		BookingID:    bookingID,
		RaisedBy:     userID,
		Category:     category,
		Description:  description,
		EvidenceRefs: evidenceRefs,
		Status:       models.DisputeStatusOpen,
	}
	if err := s.disputeRepo.Create(ctx, d); err != nil {
		return nil, apperr.Infra(err)
	}
	if _, err := s.bookingRepo.MarkDisputed(ctx, bookingID); err != nil {
		return nil, apperr.Infra(err)
	}

	_ = s.auditRepo.Log(ctx, &userID, models.ActorUser, "dispute_opened", "dispute", &d.ID,
		map[string]any{"booking_id": bookingID.String(), "category": category})
	s.publishUpdate(ctx, d.ID, partyList(b.SeekerID, b.AgentID), d.Status)

	counterparty := b.AgentID
	if userID == b.AgentID {
		counterparty = b.SeekerID
	}
	s.notifier.Notify(ctx, counterparty, "dispute_opened", map[string]any{"booking_id": bookingID.String()})
	return d, nil
}

// Claim marks a dispute as being worked by an admin.
func (s *DisputeService) Claim(ctx context.Context, disputeID, adminID uuid.UUID) error {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return apperr.ErrNotFound
	}
	ok, err := s.disputeRepo.MarkInProgress(ctx, disputeID)
	if err != nil {
		return apperr.Infra(err)
	}
	if !ok {
		return apperr.ErrInvalidTransition
	}
	_ = s.auditRepo.Log(ctx, &adminID, models.ActorAdmin, "dispute_claimed", "dispute", &disputeID, nil)
	s.publishUpdate(ctx, disputeID, s.bookingParties(ctx, d.BookingID), models.DisputeStatusInProgress)
	return nil
}

// Resolve closes the dispute with the admin's decision and moves the money
// accordingly: release pays the agent, refund returns the seeker's money,
// dismiss moves nothing. The resolution stamp and the money movement commit
// in one transaction, so a transient failure leaves the dispute open and the
// whole call retryable.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, resolution string, notes *string) error {
	if !models.IsValidResolution(resolution) {
		return apperr.New(apperr.KindValidation, "invalid resolution %q", resolution)
	}

	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return apperr.ErrNotFound
	}

	var b *models.Booking
	var net int64
	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := s.disputeRepo.WithTx(tx).Resolve(ctx, disputeID, adminID, resolution, notes)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvalidTransition
		}
		if err := s.auditRepo.WithTx(tx).Log(ctx, &adminID, models.ActorAdmin, "dispute_resolved", "dispute", &disputeID,
			map[string]any{"booking_id": d.BookingID.String(), "resolution": resolution}); err != nil {
			return err
		}

		switch resolution {
		case models.ResolutionRelease:
			b, net, err = s.bookings.releaseTx(ctx, tx, d.BookingID, &adminID, models.ActorAdmin)
			return err
		case models.ResolutionRefund:
			b, err = s.bookings.refundTx(ctx, tx, d.BookingID, &adminID, models.ActorAdmin)
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

	s.publishUpdate(ctx, disputeID, s.bookingParties(ctx, d.BookingID), models.DisputeStatusResolved)
	switch resolution {
	case models.ResolutionRelease:
		s.bookings.announceRelease(ctx, b, net)
	case models.ResolutionRefund:
		s.bookings.announceRefund(ctx, b)
	}
	return nil
}

func (s *DisputeService) Get(ctx context.Context, disputeID, userID uuid.UUID, isAdmin bool) (*models.Dispute, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !isAdmin {
		b, err := s.bookingRepo.GetByID(ctx, d.BookingID)
		if err != nil {
			return nil, apperr.Infra(err)
		}
		if !isBookingParty(b, userID) {
			return nil, apperr.ErrNotParty
		}
	}
	return d, nil
}

func (s *DisputeService) List(ctx context.Context, f repositories.DisputeFilter) ([]models.Dispute, error) {
	out, err := s.disputeRepo.List(ctx, f)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return out, nil
}
