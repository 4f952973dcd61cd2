package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type MeetingRepo struct {
	db Querier
}

func NewMeetingRepo(db Querier) *MeetingRepo {
	return &MeetingRepo{db: db}
}

func (r *MeetingRepo) WithTx(tx pgx.Tx) *MeetingRepo {
	return &MeetingRepo{db: tx}
}

// Upsert replaces the booking's meeting point; a re-proposal resets the
// counterparty's acknowledgment to pending.
func (r *MeetingRepo) Upsert(ctx context.Context, m *models.MeetingPoint) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO meeting_points (booking_id, type, location, proposed_by, ack_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id) DO UPDATE SET
			type = EXCLUDED.type,
			location = EXCLUDED.location,
			proposed_by = EXCLUDED.proposed_by,
			ack_status = EXCLUDED.ack_status,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`, m.BookingID, m.Type, m.Location, m.ProposedBy, m.AckStatus,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *MeetingRepo) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.MeetingPoint, error) {
	var m models.MeetingPoint
	err := r.db.QueryRow(ctx, `
		SELECT id, booking_id, type, location, proposed_by, ack_status, created_at, updated_at
		FROM meeting_points WHERE booking_id = $1
	`, bookingID).Scan(&m.ID, &m.BookingID, &m.Type, &m.Location, &m.ProposedBy,
		&m.AckStatus, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetAck records the counterparty's response while the proposal is still
// pending.
func (r *MeetingRepo) SetAck(ctx context.Context, bookingID uuid.UUID, ack string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE meeting_points SET ack_status = $1, updated_at = now()
		WHERE booking_id = $2 AND ack_status = $3
	`, ack, bookingID, models.MeetingAckPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
