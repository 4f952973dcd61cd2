package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type EscrowRepo struct {
	db Querier
}

func NewEscrowRepo(db Querier) *EscrowRepo {
	return &EscrowRepo{db: db}
}

func (r *EscrowRepo) WithTx(tx pgx.Tx) *EscrowRepo {
	return &EscrowRepo{db: tx}
}

func (r *EscrowRepo) Create(ctx context.Context, e *models.EscrowEntry) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO escrow_entries (request_id, booking_id, amount_kes, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.RequestID, e.BookingID, e.AmountKES, e.Status).Scan(&e.ID, &e.CreatedAt)
}

const escrowColumns = `
	id, request_id, booking_id, amount_kes, status, gateway_receipt, payer_msisdn,
	held_at, released_as_transfer, released_at, refunded_at, created_at`

func scanEscrow(row pgx.Row) (*models.EscrowEntry, error) {
	var e models.EscrowEntry
	err := row.Scan(&e.ID, &e.RequestID, &e.BookingID, &e.AmountKES, &e.Status,
		&e.GatewayReceipt, &e.PayerMSISDN, &e.HeldAt, &e.ReleasedAsTransfer,
		&e.ReleasedAt, &e.RefundedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetActiveByRequestID returns the entry that currently carries the request's
/// money: the newest non-refunded one. Transfer-released entries are superseded
// by the fresh entry created for the substitute booking.
func (r *EscrowRepo) GetActiveByRequestID(ctx context.Context, requestID uuid.UUID) (*models.EscrowEntry, error) {
	return scanEscrow(r.db.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrow_entries
		WHERE request_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, requestID))
}

func (r *EscrowRepo) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowEntry, error) {
	return scanEscrow(r.db.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrow_entries WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingID))
}

// MarkHeld flips unpaid -> escrow off the gateway callback. Re-delivery of the
// same receipt is a no-op: the status guard makes zero rows, and callers treat
// a repeated receipt on an already-held entry as success.
func (r *EscrowRepo) MarkHeld(ctx context.Context, id uuid.UUID, receipt, msisdn string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE escrow_entries SET status = $1, gateway_receipt = $2, payer_msisdn = $3, held_at = now()
		WHERE id = $4 AND status = $5
	`, models.EscrowStatusEscrow, receipt, msisdn, id, models.EscrowStatusUnpaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AttachBooking binds the held entry to the booking spawned on acceptance.
func (r *EscrowRepo) AttachBooking(ctx context.Context, id, bookingID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE escrow_entries SET booking_id = $1 WHERE id = $2`, bookingID, id)
	return err
}

// MarkReleased is the one-way escrow -> released edge. asTransfer marks the
// hold as handed to a substitute booking rather than paid out.
func (r *EscrowRepo) MarkReleased(ctx context.Context, id uuid.UUID, asTransfer bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE escrow_entries SET status = $1, released_as_transfer = $2, released_at = now()
		WHERE id = $3 AND status = $4
	`, models.EscrowStatusReleased, asTransfer, id, models.EscrowStatusEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRefunded is the one-way escrow -> refunded edge.
func (r *EscrowRepo) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE escrow_entries SET status = $1, refunded_at = now()
		WHERE id = $2 AND status = $3
	`, models.EscrowStatusRefunded, id, models.EscrowStatusEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
