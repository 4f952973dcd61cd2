package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type PayoutRepo struct {
	db Querier
}

func NewPayoutRepo(db Querier) *PayoutRepo {
	return &PayoutRepo{db: db}
}

func (r *PayoutRepo) WithTx(tx pgx.Tx) *PayoutRepo {
	return &PayoutRepo{db: tx}
}

// Upsert replaces the agent's payout number. A changed MSISDN drops back to
// pending until re-verified.
func (r *PayoutRepo) Upsert(ctx context.Context, p *models.PayoutAccount) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO payout_accounts (agent_id, msisdn, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO UPDATE SET
			msisdn = EXCLUDED.msisdn,
			status = CASE WHEN payout_accounts.msisdn = EXCLUDED.msisdn
				THEN payout_accounts.status ELSE EXCLUDED.status END,
			verified_at = CASE WHEN payout_accounts.msisdn = EXCLUDED.msisdn
				THEN payout_accounts.verified_at ELSE NULL END
		RETURNING id, status, verified_at, created_at
	`, p.AgentID, p.MSISDN, models.PayoutStatusPending,
	).Scan(&p.ID, &p.Status, &p.VerifiedAt, &p.CreatedAt)
}

func (r *PayoutRepo) GetByAgent(ctx context.Context, agentID uuid.UUID) (*models.PayoutAccount, error) {
	var p models.PayoutAccount
	err := r.db.QueryRow(ctx, `
		SELECT id, agent_id, msisdn, status, verified_at, created_at
		FROM payout_accounts WHERE agent_id = $1
	`, agentID).Scan(&p.ID, &p.AgentID, &p.MSISDN, &p.Status, &p.VerifiedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PayoutRepo) MarkVerified(ctx context.Context, agentID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payout_accounts SET status = $1, verified_at = now(), verification_code = NULL
		WHERE agent_id = $2 AND status = $3
	`, models.PayoutStatusVerified, agentID, models.PayoutStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PayoutRepo) SetVerificationCode(ctx context.Context, agentID uuid.UUID, code string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payout_accounts SET verification_code = $1
		WHERE agent_id = $2 AND status = $3
	`, code, agentID, models.PayoutStatusPending)
	return err
}

// VerifyWithCode promotes a pending account when the agent echoes back the
// code sent to their payout number.
func (r *PayoutRepo) VerifyWithCode(ctx context.Context, agentID uuid.UUID, code string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payout_accounts SET status = $1, verified_at = now(), verification_code = NULL
		WHERE agent_id = $2 AND status = $3 AND verification_code = $4
	`, models.PayoutStatusVerified, agentID, models.PayoutStatusPending, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
