package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type EarningRepo struct {
	db Querier
}

func NewEarningRepo(db Querier) *EarningRepo {
	return &EarningRepo{db: db}
}

func (r *EarningRepo) WithTx(tx pgx.Tx) *EarningRepo {
	return &EarningRepo{db: tx}
}

// Create inserts the earning derived from a release. The unique index on
// booking_id makes a double release a constraint error rather than a double
// payout.
func (r *EarningRepo) Create(ctx context.Context, e *models.AgentEarning) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO agent_earnings (agent_id, booking_id, gross_kes, commission_bps, net_kes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.AgentID, e.BookingID, e.GrossKES, e.CommissionBPS, e.NetKES).Scan(&e.ID, &e.CreatedAt)
}

func (r *EarningRepo) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]models.AgentEarning, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, agent_id, booking_id, gross_kes, commission_bps, net_kes, created_at
		FROM agent_earnings
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, agentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgentEarning
	for rows.Next() {
		var e models.AgentEarning
		if err := rows.Scan(&e.ID, &e.AgentID, &e.BookingID, &e.GrossKES,
			&e.CommissionBPS, &e.NetKES, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EarningRepo) TotalNetByAgent(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(net_kes), 0) FROM agent_earnings WHERE agent_id = $1
	`, agentID).Scan(&total)
	return total, err
}
