package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type UserRepo struct {
	db Querier
}

func NewUserRepo(db Querier) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) WithTx(tx pgx.Tx) *UserRepo {
	return &UserRepo{db: tx}
}

// UpsertByPhone mirrors the identity provider's record locally; the phone is
// the external identity key.
func (r *UserRepo) UpsertByPhone(ctx context.Context, u *models.User) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO users (phone, display_name, role, last_active_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (phone) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, users.display_name),
			last_active_at = now()
		RETURNING id, role, last_active_at, created_at
	`, u.Phone, u.DisplayName, u.Role).Scan(&u.ID, &u.Role, &u.LastActiveAt, &u.CreatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, phone, display_name, role, last_active_at, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Phone, &u.DisplayName, &u.Role, &u.LastActiveAt, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_active_at = now() WHERE id = $1`, id)
	return err
}
