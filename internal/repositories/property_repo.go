package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kejaview/backend/internal/models"
)

type PropertyRepo struct {
	db Querier
}

func NewPropertyRepo(db Querier) *PropertyRepo {
	return &PropertyRepo{db: db}
}

func (r *PropertyRepo) WithTx(tx pgx.Tx) *PropertyRepo {
	return &PropertyRepo{db: tx}
}

func (r *PropertyRepo) Create(ctx context.Context, p *models.Property) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO properties (agent_id, title, area, status, is_locked, package_group_id, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, p.AgentID, p.Title, p.Area, p.Status, p.IsLocked, p.PackageGroupID, p.Position,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PropertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	err := r.db.QueryRow(ctx, `
		SELECT id, agent_id, title, area, status, is_locked, package_group_id, position, created_at, updated_at
		FROM properties WHERE id = $1
	`, id).Scan(&p.ID, &p.AgentID, &p.Title, &p.Area, &p.Status, &p.IsLocked,
		&p.PackageGroupID, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Lock acquires the property lock. It is conditional on the property being
// unlocked and listable so two concurrent acceptances cannot both win; the
// caller must run it on the same tx that creates the booking.
func (r *PropertyRepo) Lock(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE properties SET is_locked = true, updated_at = now()
		WHERE id = $1 AND is_locked = false AND status = $2
	`, id, models.PropertyStatusListed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Unlock releases the lock on terminal booking resolution.
func (r *PropertyRepo) Unlock(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE properties SET is_locked = false, updated_at = now() WHERE id = $1
	`, id)
	return err
}

// CountUnlockedSiblings returns how many unlocked, listable properties share
// the bundle. The count includes the property itself when it qualifies.
func (r *PropertyRepo) CountUnlockedSiblings(ctx context.Context, packageGroupID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM properties
		WHERE package_group_id = $1 AND is_locked = false AND status = $2
	`, packageGroupID, models.PropertyStatusListed).Scan(&n)
	return n, err
}

// NextBundlePosition allocates the next membership position for a bundle.
// Run it on the same tx as the insert that uses it; the row lock on existing
// members serializes concurrent allocations.
func (r *PropertyRepo) NextBundlePosition(ctx context.Context, packageGroupID uuid.UUID) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1 FROM (
			SELECT position FROM properties WHERE package_group_id = $1 FOR UPDATE
		) members
	`, packageGroupID).Scan(&next)
	return next, err
}

// AssignToBundle places a property into a bundle at the given position.
func (r *PropertyRepo) AssignToBundle(ctx context.Context, id, packageGroupID uuid.UUID, position int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE properties SET package_group_id = $1, position = $2, updated_at = now() WHERE id = $3
	`, packageGroupID, position, id)
	return err
}

// ---- Package tiers ----

func (r *PropertyRepo) GetTier(ctx context.Context, id uuid.UUID) (*models.PackageTier, error) {
	var t models.PackageTier
	err := r.db.QueryRow(ctx, `
		SELECT id, code, name, min_properties, price_kes, active
		FROM package_tiers WHERE id = $1
	`, id).Scan(&t.ID, &t.Code, &t.Name, &t.MinProperties, &t.PriceKES, &t.Active)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PropertyRepo) ListActiveTiers(ctx context.Context) ([]models.PackageTier, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, name, min_properties, price_kes, active
		FROM package_tiers WHERE active = true ORDER BY min_properties
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []models.PackageTier
	for rows.Next() {
		var t models.PackageTier
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.MinProperties, &t.PriceKES, &t.Active); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
