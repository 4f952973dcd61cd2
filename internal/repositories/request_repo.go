package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type RequestRepo struct {
	db Querier
}

func NewRequestRepo(db Querier) *RequestRepo {
	return &RequestRepo{db: db}
}

func (r *RequestRepo) WithTx(tx pgx.Tx) *RequestRepo {
	return &RequestRepo{db: tx}
}

func (r *RequestRepo) Create(ctx context.Context, req *models.ViewingRequest) error {
	slots, err := json.Marshal(req.ProposedSlots)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO viewing_requests (property_id, requester_id, agent_id, package_id, amount_kes, status, payment_status, proposed_slots)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, req.PropertyID, req.RequesterID, req.AgentID, req.PackageID, req.AmountKES, req.Status, req.PaymentStatus, slots,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

const requestColumns = `
	id, property_id, requester_id, agent_id, package_id, amount_kes, status, payment_status,
	proposed_slots, counter, hidden_by_seeker, hidden_by_agent, accepted_at, resolved_at,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*models.ViewingRequest, error) {
	var req models.ViewingRequest
	var slots, counter []byte
	err := row.Scan(&req.ID, &req.PropertyID, &req.RequesterID, &req.AgentID, &req.PackageID,
		&req.AmountKES, &req.Status, &req.PaymentStatus, &slots, &counter,
		&req.HiddenBySeeker, &req.HiddenByAgent, &req.AcceptedAt, &req.ResolvedAt,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(slots, &req.ProposedSlots); err != nil {
		return nil, err
	}
	if counter != nil {
		if err := json.Unmarshal(counter, &req.Counter); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ViewingRequest, error) {
	return scanRequest(r.db.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM viewing_requests WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the request row for the remainder of the tx.
func (r *RequestRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ViewingRequest, error) {
	return scanRequest(r.db.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM viewing_requests WHERE id = $1 FOR UPDATE
	`, id))
}

// HasActiveRequest reports whether the requester already holds a non-terminal,
// non-paid request for the property (the duplicate-prevention invariant).
func (r *RequestRepo) HasActiveRequest(ctx context.Context, requesterID, propertyID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM viewing_requests
			WHERE requester_id = $1 AND property_id = $2
			  AND status IN ($3, $4)
			  AND payment_status IN ($5, $6)
		)
	`, requesterID, propertyID,
		models.RequestStatusPending, models.RequestStatusCountered,
		models.PaymentStatusUnpaid, models.PaymentStatusEscrow,
	).Scan(&exists)
	return exists, err
}

// UpdateStatus transitions the request conditionally on its current status so
// concurrent mutations resolve to one winner.
func (r *RequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE viewing_requests SET status = $1, updated_at = now(),
			accepted_at = CASE WHEN $1 = 'accepted' THEN now() ELSE accepted_at END,
			resolved_at = CASE WHEN $1 IN ('accepted','rejected','cancelled') THEN now() ELSE resolved_at END
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetCounter attaches a counter-proposal and moves the request to countered.
func (r *RequestRepo) SetCounter(ctx context.Context, id uuid.UUID, from string, counter *models.CounterProposal) (bool, error) {
	data, err := json.Marshal(counter)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE viewing_requests SET status = $1, counter = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.RequestStatusCountered, data, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RequestRepo) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE viewing_requests SET payment_status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	return err
}

// SetHidden soft-hides the request for one party; the row is never deleted.
func (r *RequestRepo) SetHidden(ctx context.Context, id uuid.UUID, forSeeker bool) error {
	col := "hidden_by_agent"
	if forSeeker {
		col = "hidden_by_seeker"
	}
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE viewing_requests SET %s = true, updated_at = now() WHERE id = $1
	`, col), id)
	return err
}

type RequestFilter struct {
	RequesterID *uuid.UUID
	AgentID     *uuid.UUID
	PropertyID  *uuid.UUID
	Status      *string
	Limit       int
	Offset      int
}

func (r *RequestRepo) ListWithProperty(ctx context.Context, f RequestFilter) ([]models.RequestWithProperty, error) {
	query := `
		SELECT r.id, r.property_id, r.requester_id, r.agent_id, r.package_id, r.amount_kes,
		       r.status, r.payment_status, r.proposed_slots, r.counter,
		       r.hidden_by_seeker, r.hidden_by_agent, r.accepted_at, r.resolved_at,
		       r.created_at, r.updated_at, p.title, p.area
		FROM viewing_requests r
		JOIN properties p ON p.id = r.property_id
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.RequesterID != nil {
		where = append(where, fmt.Sprintf("r.requester_id = $%d AND r.hidden_by_seeker = false", argIdx))
		args = append(args, *f.RequesterID)
		argIdx++
	}
	if f.AgentID != nil {
		where = append(where, fmt.Sprintf("r.agent_id = $%d AND r.hidden_by_agent = false", argIdx))
		args = append(args, *f.AgentID)
		argIdx++
	}
	if f.PropertyID != nil {
		where = append(where, fmt.Sprintf("r.property_id = $%d", argIdx))
		args = append(args, *f.PropertyID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("r.status = $%d", argIdx))
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
	query += fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RequestWithProperty
	for rows.Next() {
		var req models.RequestWithProperty
		var slots, counter []byte
		if err := rows.Scan(&req.ID, &req.PropertyID, &req.RequesterID, &req.AgentID, &req.PackageID,
			&req.AmountKES, &req.Status, &req.PaymentStatus, &slots, &counter,
			&req.HiddenBySeeker, &req.HiddenByAgent, &req.AcceptedAt, &req.ResolvedAt,
			&req.CreatedAt, &req.UpdatedAt, &req.PropertyTitle, &req.PropertyArea); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(slots, &req.ProposedSlots); err != nil {
			return nil, err
		}
		if counter != nil {
			if err := json.Unmarshal(counter, &req.Counter); err != nil {
				return nil, err
			}
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListStale returns non-terminal requests untouched since the cutoff; the
// end-of-day sweep expires them.
func (r *RequestRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.ViewingRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+` FROM viewing_requests
		WHERE status IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4
	`, models.RequestStatusPending, models.RequestStatusCountered, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ViewingRequest
	for rows.Next() {
		var req models.ViewingRequest
		var slots, counter []byte
		if err := rows.Scan(&req.ID, &req.PropertyID, &req.RequesterID, &req.AgentID, &req.PackageID,
			&req.AmountKES, &req.Status, &req.PaymentStatus, &slots, &counter,
			&req.HiddenBySeeker, &req.HiddenByAgent, &req.AcceptedAt, &req.ResolvedAt,
			&req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(slots, &req.ProposedSlots); err != nil {
			return nil, err
		}
		if counter != nil {
			if err := json.Unmarshal(counter, &req.Counter); err != nil {
				return nil, err
			}
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
