package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type BookingRepo struct {
	db Querier
}

func NewBookingRepo(db Querier) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) WithTx(tx pgx.Tx) *BookingRepo {
	return &BookingRepo{db: tx}
}

func (r *BookingRepo) Create(ctx context.Context, b *models.Booking) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO bookings (request_id, property_id, seeker_id, agent_id, amount_kes, status, payment_status,
		                      scheduled_date, scheduled_time, scheduled_end_time, auto_release_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, b.RequestID, b.PropertyID, b.SeekerID, b.AgentID, b.AmountKES, b.Status, b.PaymentStatus,
		b.ScheduledDate, b.ScheduledTime, b.ScheduledEndTime, b.AutoReleaseAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

const bookingColumns = `
	id, request_id, property_id, seeker_id, agent_id, amount_kes, status, payment_status,
	scheduled_date, scheduled_time, scheduled_end_time, auto_release_at,
	seeker_arrived, agent_arrived, physical_meeting_confirmed, outcome,
	actual_start_time, completed_at, cancelled_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.RequestID, &b.PropertyID, &b.SeekerID, &b.AgentID, &b.AmountKES,
		&b.Status, &b.PaymentStatus, &b.ScheduledDate, &b.ScheduledTime, &b.ScheduledEndTime,
		&b.AutoReleaseAt, &b.SeekerArrived, &b.AgentArrived, &b.PhysicalMeetingConfirmed,
		&b.Outcome, &b.ActualStartTime, &b.CompletedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// GetByIDForUpdate locks the booking row for the remainder of the tx; the
// sweeper and manual actions serialize on it.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

type BookingFilter struct {
	SeekerID   *uuid.UUID
	AgentID    *uuid.UUID
	PropertyID *uuid.UUID
	Status     *string
	Limit      int
	Offset     int
}

func (r *BookingRepo) ListWithProperty(ctx context.Context, f BookingFilter) ([]models.BookingWithProperty, error) {
	query := `
		SELECT b.id, b.request_id, b.property_id, b.seeker_id, b.agent_id, b.amount_kes, b.status, b.payment_status,
		       b.scheduled_date, b.scheduled_time, b.scheduled_end_time, b.auto_release_at,
		       b.seeker_arrived, b.agent_arrived, b.physical_meeting_confirmed, b.outcome,
		       b.actual_start_time, b.completed_at, b.cancelled_at, b.created_at, b.updated_at,
		       p.title, p.area
		FROM bookings b
		JOIN properties p ON p.id = b.property_id
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.SeekerID != nil {
		where = append(where, fmt.Sprintf("b.seeker_id = $%d", argIdx))
		args = append(args, *f.SeekerID)
		argIdx++
	}
	if f.AgentID != nil {
		where = append(where, fmt.Sprintf("b.agent_id = $%d", argIdx))
		args = append(args, *f.AgentID)
		argIdx++
	}
	if f.PropertyID != nil {
		where = append(where, fmt.Sprintf("b.property_id = $%d", argIdx))
		args = append(args, *f.PropertyID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("b.status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BookingWithProperty
	for rows.Next() {
		var b models.BookingWithProperty
		if err := rows.Scan(&b.ID, &b.RequestID, &b.PropertyID, &b.SeekerID, &b.AgentID, &b.AmountKES,
			&b.Status, &b.PaymentStatus, &b.ScheduledDate, &b.ScheduledTime, &b.ScheduledEndTime,
			&b.AutoReleaseAt, &b.SeekerArrived, &b.AgentArrived, &b.PhysicalMeetingConfirmed,
			&b.Outcome, &b.ActualStartTime, &b.CompletedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
			&b.PropertyTitle, &b.PropertyArea); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ConfirmArrival sets one party's arrival flag and, when both are set, stamps
// the physical meeting. Idempotent per party.
func (r *BookingRepo) ConfirmArrival(ctx context.Context, id uuid.UUID, isSeeker bool) error {
	col := "agent_arrived"
	if isSeeker {
		col = "seeker_arrived"
	}
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE bookings SET %s = true,
			physical_meeting_confirmed = (seeker_arrived OR $2) AND (agent_arrived OR $3),
			actual_start_time = CASE
				WHEN actual_start_time IS NULL AND (seeker_arrived OR $2) AND (agent_arrived OR $3) THEN now()
				ELSE actual_start_time
			END,
			updated_at = now()
		WHERE id = $1
	`, col), id, isSeeker, !isSeeker)
	return err
}

// SetOutcome records the seeker's outcome exactly once.
func (r *BookingRepo) SetOutcome(ctx context.Context, id uuid.UUID, outcome string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET outcome = $1, updated_at = now()
		WHERE id = $2 AND outcome IS NULL AND physical_meeting_confirmed = true AND status = $3
	`, outcome, id, models.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FinalizeCompleted moves a booking to completed/released conditionally on it
// still being finalizable. Zero rows means someone else already finalized —
// the single-winner guarantee for sweeper/manual races.
func (r *BookingRepo) FinalizeCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = $1, payment_status = $2, completed_at = now(), updated_at = now()
		WHERE id = $3 AND status IN ($4, $5) AND payment_status = $6
	`, models.BookingStatusCompleted, models.BookingPaymentReleased, id,
		models.BookingStatusConfirmed, models.BookingStatusDisputed, models.BookingPaymentEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCancelled cancels conditionally on the current status. payment is the
// terminal payment status: refunded for ordinary cancellation, released when
// the hold transferred to a substitute booking.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id uuid.UUID, from, payment string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = $1, payment_status = $2, cancelled_at = now(), updated_at = now()
		WHERE id = $3 AND status = $4 AND payment_status = $5
	`, models.BookingStatusCancelled, payment, id, from, models.BookingPaymentEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelFrozen cancels a no-show booking while leaving the payment frozen in
// escrow for administrative resolution.
func (r *BookingRepo) CancelFrozen(ctx context.Context, id uuid.UUID, from string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = $1, cancelled_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3 AND payment_status = $4
	`, models.BookingStatusCancelled, id, from, models.BookingPaymentEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SettleCancelled resolves the frozen payment on an already-cancelled booking;
// the dispute-resolution path for no-shows.
func (r *BookingRepo) SettleCancelled(ctx context.Context, id uuid.UUID, payment string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET payment_status = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND payment_status = $4
	`, payment, id, models.BookingStatusCancelled, models.BookingPaymentEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BookingRepo) MarkDisputed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.BookingStatusDisputed, id, models.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ApplySchedule rewrites the schedule after an accepted reschedule and resets
// both arrival flags and the meeting confirmation, whatever their prior state.
func (r *BookingRepo) ApplySchedule(ctx context.Context, id uuid.UUID, date, start, end string, autoReleaseAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bookings SET scheduled_date = $1, scheduled_time = $2, scheduled_end_time = $3,
			auto_release_at = $4,
			seeker_arrived = false, agent_arrived = false, physical_meeting_confirmed = false,
			actual_start_time = NULL, updated_at = now()
		WHERE id = $5
	`, date, start, end, autoReleaseAt, id)
	return err
}

// ListDueForAutoRelease returns bookings past their deadline that are still
// finalizable: confirmed, escrowed, no submitted outcome (an unresolved
// alternative request leaves the booking open too), and no open dispute.
func (r *BookingRepo) ListDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings b
		WHERE b.status = $1 AND b.payment_status = $2 AND b.auto_release_at <= $3
		  AND b.outcome IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM disputes d
			WHERE d.booking_id = b.id AND d.status IN ($4, $5)
		  )
		ORDER BY b.auto_release_at
		LIMIT $6
	`, models.BookingStatusConfirmed, models.BookingPaymentEscrow, now,
		models.DisputeStatusOpen, models.DisputeStatusInProgress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBookingRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBookingRows(rows pgx.Rows) (*models.Booking, error) {
	var b models.Booking
	err := rows.Scan(&b.ID, &b.RequestID, &b.PropertyID, &b.SeekerID, &b.AgentID, &b.AmountKES,
		&b.Status, &b.PaymentStatus, &b.ScheduledDate, &b.ScheduledTime, &b.ScheduledEndTime,
		&b.AutoReleaseAt, &b.SeekerArrived, &b.AgentArrived, &b.PhysicalMeetingConfirmed,
		&b.Outcome, &b.ActualStartTime, &b.CompletedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
