package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
)

// AvailabilityService computes which package tiers are purchasable for a
// property right now. Availability is never stored; it is derived from lock
// state and bundle membership at read time, so a lock taken elsewhere is
// visible immediately.
type AvailabilityService struct {
	propertyRepo *repositories.PropertyRepo
	log          *zap.Logger
}

func NewAvailabilityService(propertyRepo *repositories.PropertyRepo, log *zap.Logger) *AvailabilityService {
	return &AvailabilityService{propertyRepo: propertyRepo, log: log}
}

// PackageOption is one tier with its availability verdict for a property.
type PackageOption struct {
	Tier      models.PackageTier `json:"tier"`
	Available bool               `json:"available"`
}

// AvailablePackages lists every active tier with whether the property can
// carry it. A single tier needs the property itself listable and unlocked; a
// multi-property tier additionally needs enough unlocked listable siblings in
// the property's bundle.
func (s *AvailabilityService) AvailablePackages(ctx context.Context, propertyID uuid.UUID) ([]PackageOption, error) {
	prop, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}

	tiers, err := s.propertyRepo.ListActiveTiers(ctx)
	if err != nil {
		return nil, apperr.Infra(err)
	}

	selfAvailable := prop.IsListable() && !prop.IsLocked

	siblings := 0
	if prop.PackageGroupID != nil {
		siblings, err = s.propertyRepo.CountUnlockedSiblings(ctx, *prop.PackageGroupID)
		if err != nil {
			return nil, apperr.Infra(err)
		}
	}

	out := make([]PackageOption, 0, len(tiers))
	for _, tier := range tiers {
		opt := PackageOption{Tier: tier}
		if tier.IsSingle() {
			opt.Available = selfAvailable
		} else {
			opt.Available = selfAvailable && siblings >= tier.MinProperties
		}
		out = append(out, opt)
	}
	return out, nil
}

// ValidateSelection checks a tier against a property at purchase time and
// returns the tier so the caller prices the request from it, never from
// client input.
func (s *AvailabilityService) ValidateSelection(ctx context.Context, propertyID, tierID uuid.UUID) (*models.PackageTier, error) {
	prop, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !prop.IsListable() {
		return nil, apperr.ErrPackageUnavailable
	}
	if prop.IsLocked {
		return nil, apperr.ErrPropertyLocked
	}

	tier, err := s.propertyRepo.GetTier(ctx, tierID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if !tier.Active {
		return nil, apperr.ErrPackageUnavailable
	}

	if !tier.IsSingle() {
		if prop.PackageGroupID == nil {
			return nil, apperr.ErrPackageUnavailable
		}
		siblings, err := s.propertyRepo.CountUnlockedSiblings(ctx, *prop.PackageGroupID)
		if err != nil {
			return nil, apperr.Infra(err)
		}
		if siblings < tier.MinProperties {
			return nil, apperr.ErrPackageUnavailable
		}
	}
	return tier, nil
}
