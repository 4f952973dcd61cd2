package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
)

// PropertyService mirrors catalog listings into the engine and manages bundle
// membership for multi-property package tiers.
type PropertyService struct {
	pool         *pgxpool.Pool
	propertyRepo *repositories.PropertyRepo
	auditRepo    *repositories.AuditRepo
	log          *zap.Logger
}

func NewPropertyService(
	pool *pgxpool.Pool,
	propertyRepo *repositories.PropertyRepo,
	auditRepo *repositories.AuditRepo,
	log *zap.Logger,
) *PropertyService {
	return &PropertyService{
		pool:         pool,
		propertyRepo: propertyRepo,
		auditRepo:    auditRepo,
		log:          log,
	}
}

func (s *PropertyService) Create(ctx context.Context, agentID uuid.UUID, title, area string) (*models.Property, error) {
	if title == "" || area == "" {
		return nil, apperr.New(apperr.KindValidation, "title and area are required")
	}
	p := &models.Property{
		AgentID: agentID,
		Title:   title,
		Area:    area,
		Status:  models.PropertyStatusListed,
	}
	if err := s.propertyRepo.Create(ctx, p); err != nil {
		return nil, apperr.Infra(err)
	}
	_ = s.auditRepo.Log(ctx, &agentID, models.ActorUser, "property_created", "property", &p.ID, nil)
	return p, nil
}

func (s *PropertyService) Get(ctx context.Context, propertyID uuid.UUID) (*models.Property, error) {
	p, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// AssignToBundle adds the agent's property to a bundle. The position is
// allocated under the bundle's row locks so two concurrent assignments never
// collide.
func (s *PropertyService) AssignToBundle(ctx context.Context, agentID, propertyID, groupID uuid.UUID) (*models.Property, error) {
	p, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if p.AgentID != agentID {
		return nil, apperr.ErrAgentOnly
	}
	if p.PackageGroupID != nil {
		return nil, apperr.New(apperr.KindConflict, "property already belongs to a bundle")
	}

	err = repositories.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		properties := s.propertyRepo.WithTx(tx)
		pos, err := properties.NextBundlePosition(ctx, groupID)
		if err != nil {
			return err
		}
		return properties.AssignToBundle(ctx, propertyID, groupID, pos)
	})
	if err != nil {
		return nil, apperr.Infra(err)
	}

	_ = s.auditRepo.Log(ctx, &agentID, models.ActorUser, "property_bundled", "property", &propertyID,
		map[string]any{"package_group_id": groupID.String()})
	return s.propertyRepo.GetByID(ctx, propertyID)
}
