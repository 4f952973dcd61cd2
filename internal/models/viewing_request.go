package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewingRequest statuses
const (
	RequestStatusPending   = "pending"
	RequestStatusCountered = "countered"
	RequestStatusAccepted  = "accepted"
	RequestStatusRejected  = "rejected"
	RequestStatusCancelled = "cancelled"
)

// ViewingRequest payment statuses
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusEscrow   = "escrow"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// Valid request state transitions: from -> []to
var ValidRequestTransitions = map[string][]string{
	RequestStatusPending:   {RequestStatusCountered, RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusCountered: {RequestStatusCountered, RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusAccepted:  {},
	RequestStatusRejected:  {},
	RequestStatusCancelled: {},
}

func IsValidRequestTransition(from, to string) bool {
	allowed, ok := ValidRequestTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalRequestStatus reports whether no further transitions are possible.
func IsTerminalRequestStatus(status string) bool {
	return len(ValidRequestTransitions[status]) == 0
}

// ProposedSlot is one date/time-window option offered by the requester,
// in preference order.
type ProposedSlot struct {
	Date       string `json:"date"`        // YYYY-MM-DD
	TimeWindow string `json:"time_window"` // HH:MM-HH:MM
}

// CounterProposal is an alternative schedule/location attached to a countered
// request. ProposedBy records which party authored it; that party may never be
// the one whose acceptance succeeds.
type CounterProposal struct {
	Date       string     `json:"date"`
	TimeWindow string     `json:"time_window"`
	Location   *GeoPoint  `json:"location,omitempty"`
	ProposedBy uuid.UUID  `json:"proposed_by"`
	ProposedAt *time.Time `json:"proposed_at,omitempty"`
}

// GeoPoint is a named coordinate used for meeting points and counter locations.
type GeoPoint struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type ViewingRequest struct {
	ID              uuid.UUID        `json:"id"`
	PropertyID      uuid.UUID        `json:"property_id"`
	RequesterID     uuid.UUID        `json:"requester_id"`
	AgentID         uuid.UUID        `json:"agent_id"`
	PackageID       uuid.UUID        `json:"package_id"`
	AmountKES       int64            `json:"amount_kes"`
	Status          string           `json:"status"`
	PaymentStatus   string           `json:"payment_status"`
	ProposedSlots   []ProposedSlot   `json:"proposed_slots"`
	Counter         *CounterProposal `json:"counter,omitempty"`
	HiddenBySeeker  bool             `json:"hidden_by_seeker"`
	HiddenByAgent   bool             `json:"hidden_by_agent"`
	AcceptedAt      *time.Time       `json:"accepted_at,omitempty"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ActiveProposer returns the party whose schedule proposal is currently on the
// table. Acceptance must come from the other side.
func (r *ViewingRequest) ActiveProposer() uuid.UUID {
	if r.Counter != nil {
		return r.Counter.ProposedBy
	}
	return r.RequesterID
}

// Counterparty returns the other side of the negotiation relative to userID.
func (r *ViewingRequest) Counterparty(userID uuid.UUID) uuid.UUID {
	if userID == r.RequesterID {
		return r.AgentID
	}
	return r.RequesterID
}

// IsParty reports whether userID is one of the two negotiating parties.
func (r *ViewingRequest) IsParty(userID uuid.UUID) bool {
	return userID == r.RequesterID || userID == r.AgentID
}

// RequestWithProperty embeds ViewingRequest and adds property info to avoid
// N+1 queries on list endpoints.
type RequestWithProperty struct {
	ViewingRequest
	PropertyTitle *string `json:"property_title,omitempty"`
	PropertyArea  *string `json:"property_area,omitempty"`
}
