package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type RescheduleRepo struct {
	db Querier
}

func NewRescheduleRepo(db Querier) *RescheduleRepo {
	return &RescheduleRepo{db: db}
}

func (r *RescheduleRepo) WithTx(tx pgx.Tx) *RescheduleRepo {
	return &RescheduleRepo{db: tx}
}

func (r *RescheduleRepo) Create(ctx context.Context, req *models.RescheduleRequest) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO reschedule_requests (booking_id, requested_by, status, date, time, end_time, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, req.BookingID, req.RequestedBy, req.Status, req.Date, req.Time, req.EndTime, req.Location,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

const rescheduleColumns = `
	id, booking_id, requested_by, status, date, time, end_time, location, counter,
	resolved_at, created_at, updated_at`

func scanReschedule(row pgx.Row) (*models.RescheduleRequest, error) {
	var req models.RescheduleRequest
	err := row.Scan(&req.ID, &req.BookingID, &req.RequestedBy, &req.Status,
		&req.Date, &req.Time, &req.EndTime, &req.Location, &req.Counter,
		&req.ResolvedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RescheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RescheduleRequest, error) {
	return scanReschedule(r.db.QueryRow(ctx, `
		SELECT `+rescheduleColumns+` FROM reschedule_requests WHERE id = $1
	`, id))
}

// HasPendingByBooking reports whether the booking already carries a
// non-terminal reschedule request.
func (r *RescheduleRepo) HasPendingByBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reschedule_requests
			WHERE booking_id = $1 AND status IN ($2, $3)
		)
	`, bookingID, models.RescheduleStatusPending, models.RescheduleStatusCountered).Scan(&exists)
	return exists, err
}

// UpdateStatus moves a reschedule request conditionally on its current status.
func (r *RescheduleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE reschedule_requests SET status = $1,
			resolved_at = CASE WHEN $1 IN ($4, $5) THEN now() ELSE resolved_at END,
			updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from, models.RescheduleStatusAccepted, models.RescheduleStatusRejected)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetCounter stores the counterparty's counter-proposal and moves the request
// to countered in one statement.
func (r *RescheduleRepo) SetCounter(ctx context.Context, id uuid.UUID, counter *models.CounterProposal) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE reschedule_requests SET counter = $1, status = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, counter, models.RescheduleStatusCountered, id, models.RescheduleStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RescheduleRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.RescheduleRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rescheduleColumns+` FROM reschedule_requests
		WHERE booking_id = $1
		ORDER BY created_at DESC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RescheduleRequest
	for rows.Next() {
		var req models.RescheduleRequest
		if err := rows.Scan(&req.ID, &req.BookingID, &req.RequestedBy, &req.Status,
			&req.Date, &req.Time, &req.EndTime, &req.Location, &req.Counter,
			&req.ResolvedAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
