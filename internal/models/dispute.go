package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute statuses
const (
	DisputeStatusOpen       = "open"
	DisputeStatusInProgress = "in_progress"
	DisputeStatusResolved   = "resolved"
)

// Dispute categories
const (
	DisputeViewingIssue        = "viewing_issue"
	DisputeNoShowSeeker        = "no_show_seeker"
	DisputeNoShowAgent         = "no_show_agent"
	DisputeAlternativeDeclined = "alternative_declined"
)

// Dispute resolution outcomes (admin-chosen; funds never move by default)
const (
	ResolutionRelease = "release"
	ResolutionRefund  = "refund"
	ResolutionDismiss = "dismiss"
)

// Valid dispute state transitions: from -> []to
var ValidDisputeTransitions = map[string][]string{
	DisputeStatusOpen:       {DisputeStatusInProgress, DisputeStatusResolved},
	DisputeStatusInProgress: {DisputeStatusResolved},
	DisputeStatusResolved:   {},
}

func IsValidDisputeTransition(from, to string) bool {
	allowed, ok := ValidDisputeTransitions[from]
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

func IsValidDisputeCategory(c string) bool {
	switch c {
	case DisputeViewingIssue, DisputeNoShowSeeker, DisputeNoShowAgent, DisputeAlternativeDeclined:
		return true
	}
	return false
}

func IsValidResolution(r string) bool {
	return r == ResolutionRelease || r == ResolutionRefund || r == ResolutionDismiss
}

// Dispute freezes the linked booking's escrow until an admin resolves it.
// It is a first-class pending state, not an error.
type Dispute struct {
	ID          uuid.UUID `json:"id"`
	BookingID   uuid.UUID `json:"booking_id"`
	RaisedBy    uuid.UUID `json:"raised_by"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	// EvidenceRefs are opaque references to uploaded media; storage is external.
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
	Status       string   `json:"status"`

	Resolution *string    `json:"resolution,omitempty"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
