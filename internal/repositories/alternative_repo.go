package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type AlternativeRepo struct {
	db Querier
}

func NewAlternativeRepo(db Querier) *AlternativeRepo {
	return &AlternativeRepo{db: db}
}

func (r *AlternativeRepo) WithTx(tx pgx.Tx) *AlternativeRepo {
	return &AlternativeRepo{db: tx}
}

func (r *AlternativeRepo) Create(ctx context.Context, o *models.AlternativeOffer) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO alternative_offers (original_booking_id, new_request_id, property_id, offered_by, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, o.OriginalBookingID, o.NewRequestID, o.PropertyID, o.OfferedBy, o.Status).Scan(&o.ID, &o.CreatedAt)
}

const alternativeColumns = `
	id, original_booking_id, new_request_id, property_id, offered_by, status,
	new_booking_id, resolved_at, created_at`

func scanAlternative(row pgx.Row) (*models.AlternativeOffer, error) {
	var o models.AlternativeOffer
	err := row.Scan(&o.ID, &o.OriginalBookingID, &o.NewRequestID, &o.PropertyID,
		&o.OfferedBy, &o.Status, &o.NewBookingID, &o.ResolvedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *AlternativeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AlternativeOffer, error) {
	return scanAlternative(r.db.QueryRow(ctx, `
		SELECT `+alternativeColumns+` FROM alternative_offers WHERE id = $1
	`, id))
}

func (r *AlternativeRepo) GetPendingByBooking(ctx context.Context, bookingID uuid.UUID) (*models.AlternativeOffer, error) {
	return scanAlternative(r.db.QueryRow(ctx, `
		SELECT `+alternativeColumns+` FROM alternative_offers
		WHERE original_booking_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingID, models.AlternativeStatusPending))
}

func (r *AlternativeRepo) HasPendingByBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alternative_offers
			WHERE original_booking_id = $1 AND status = $2
		)
	`, bookingID, models.AlternativeStatusPending).Scan(&exists)
	return exists, err
}

// MarkAccepted resolves the offer and records the substitute booking it
// produced, conditionally on the offer still being pending.
func (r *AlternativeRepo) MarkAccepted(ctx context.Context, id, newBookingID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE alternative_offers SET status = $1, new_booking_id = $2, resolved_at = now()
		WHERE id = $3 AND status = $4
	`, models.AlternativeStatusAccepted, newBookingID, id, models.AlternativeStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AlternativeRepo) MarkDeclined(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE alternative_offers SET status = $1, resolved_at = now()
		WHERE id = $2 AND status = $3
	`, models.AlternativeStatusDeclined, id, models.AlternativeStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
