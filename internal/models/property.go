package models

import (
	"time"

	"github.com/google/uuid"
)

// Property listing statuses. Only listable properties count toward bundle
// package availability or accept new viewing requests.
const (
	PropertyStatusListed   = "listed"
	PropertyStatusUnlisted = "unlisted"
)

// Property carries the lock state and bundle membership this engine owns.
// Listing metadata (title, area) is read-only here, mirrored from the catalog.
type Property struct {
	ID      uuid.UUID `json:"id"`
	AgentID uuid.UUID `json:"agent_id"`
	Title   string    `json:"title"`
	Area    string    `json:"area"`
	Status  string    `json:"status"`

	// IsLocked means a non-terminal booking (or an accept in flight) holds the
	// property; locked properties take no new viewing requests.
	IsLocked bool `json:"is_locked"`

	// Bundle membership: properties sharing a PackageGroupID are siblings for
	// multi-property package tiers. Position is allocated per bundle inside the
	// inserting transaction.
	PackageGroupID *uuid.UUID `json:"package_group_id,omitempty"`
	Position       *int       `json:"position,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsListable reports whether the property counts toward availability.
func (p *Property) IsListable() bool {
	return p.Status == PropertyStatusListed
}

// PackageTier is a purchasable viewing product. The single tier covers one
// property; multi-property tiers require MinProperties unlocked, listable
// siblings in the same bundle before they are purchasable.
type PackageTier struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	MinProperties int       `json:"min_properties"`
	PriceKES      int64     `json:"price_kes"`
	Active        bool      `json:"active"`
}

// IsSingle reports whether the tier covers exactly one property.
func (t *PackageTier) IsSingle() bool {
	return t.MinProperties <= 1
}
