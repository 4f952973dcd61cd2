package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type DisputeRepo struct {
	db Querier
}

func NewDisputeRepo(db Querier) *DisputeRepo {
	return &DisputeRepo{db: db}
}

func (r *DisputeRepo) WithTx(tx pgx.Tx) *DisputeRepo {
	return &DisputeRepo{db: tx}
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO disputes (booking_id, raised_by, category, description, evidence_refs, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, d.BookingID, d.RaisedBy, d.Category, d.Description, d.EvidenceRefs, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

const disputeColumns = `
	id, booking_id, raised_by, category, description, evidence_refs, status,
	resolution, resolved_by, notes, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.BookingID, &d.RaisedBy, &d.Category, &d.Description,
		&d.EvidenceRefs, &d.Status, &d.Resolution, &d.ResolvedBy, &d.Notes,
		&d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return scanDispute(r.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
}

func (r *DisputeRepo) HasOpenByBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM disputes
			WHERE booking_id = $1 AND status IN ($2, $3)
		)
	`, bookingID, models.DisputeStatusOpen, models.DisputeStatusInProgress).Scan(&exists)
	return exists, err
}

func (r *DisputeRepo) GetOpenByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error) {
	return scanDispute(r.db.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE booking_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingID, models.DisputeStatusOpen, models.DisputeStatusInProgress))
}

func (r *DisputeRepo) MarkInProgress(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE disputes SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.DisputeStatusInProgress, id, models.DisputeStatusOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Resolve closes a dispute with the admin's decision, conditionally on it not
// being resolved yet.
func (r *DisputeRepo) Resolve(ctx context.Context, id, adminID uuid.UUID, resolution string, notes *string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE disputes SET status = $1, resolution = $2, resolved_by = $3, notes = $4,
			resolved_at = now(), updated_at = now()
		WHERE id = $5 AND status IN ($6, $7)
	`, models.DisputeStatusResolved, resolution, adminID, notes, id,
		models.DisputeStatusOpen, models.DisputeStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type DisputeFilter struct {
	Status   *string
	RaisedBy *uuid.UUID
	Limit    int
	Offset   int
}

func (r *DisputeRepo) List(ctx context.Context, f DisputeFilter) ([]models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes`
	args := []any{}
	argIdx := 1

	if f.Status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}
	if f.RaisedBy != nil {
		if len(args) == 0 {
			query += " WHERE "
		} else {
			query += " AND "
		}
		query += fmt.Sprintf("raised_by = $%d", argIdx)
		args = append(args, *f.RaisedBy)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.BookingID, &d.RaisedBy, &d.Category, &d.Description,
			&d.EvidenceRefs, &d.Status, &d.Resolution, &d.ResolvedBy, &d.Notes,
			&d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
