package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RoleSeeker = "seeker"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

// User is the engine's projection of an identity resolved by the external
// IdentityProvider; only id, role and contact handles matter here.
type User struct {
	ID           uuid.UUID `json:"id"`
	Phone        string    `json:"phone"`
	DisplayName  *string   `json:"display_name,omitempty"`
	Role         string    `json:"role"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// PayoutAccount is the verified M-Pesa number agent earnings are released
// against. One active account per agent.
const (
	PayoutStatusPending  = "pending"
	PayoutStatusVerified = "verified"
)

type PayoutAccount struct {
	ID         uuid.UUID  `json:"id"`
	AgentID    uuid.UUID  `json:"agent_id"`
	MSISDN     string     `json:"msisdn"`
	Status     string     `json:"status"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
