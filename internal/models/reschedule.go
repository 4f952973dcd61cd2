package models

import (
	"time"

	"github.com/google/uuid"
)

// RescheduleRequest statuses
const (
	RescheduleStatusPending   = "pending"
	RescheduleStatusAccepted  = "accepted"
	RescheduleStatusRejected  = "rejected"
	RescheduleStatusCountered = "countered"
)

// Valid reschedule state transitions: from -> []to
var ValidRescheduleTransitions = map[string][]string{
	RescheduleStatusPending:   {RescheduleStatusAccepted, RescheduleStatusRejected, RescheduleStatusCountered},
	RescheduleStatusCountered: {RescheduleStatusAccepted, RescheduleStatusRejected},
	RescheduleStatusAccepted:  {},
	RescheduleStatusRejected:  {},
}

func IsValidRescheduleTransition(from, to string) bool {
	allowed, ok := ValidRescheduleTransitions[from]
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

// RescheduleRequest proposes a new date/time/location for an existing booking.
// At most one non-terminal request per booking at a time.
type RescheduleRequest struct {
	ID          uuid.UUID `json:"id"`
	BookingID   uuid.UUID `json:"booking_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
	Status      string    `json:"status"`

	Date       string    `json:"date"`        // YYYY-MM-DD
	Time       string    `json:"time"`        // HH:MM
	EndTime    string    `json:"end_time"`    // HH:MM
	Location   *GeoPoint `json:"location,omitempty"`

	// Counter, when set, supersedes the original proposal; acceptance of a
	// countered reschedule applies the counter and must come from RequestedBy.
	Counter *CounterProposal `json:"counter,omitempty"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// AlternativeOffer statuses
const (
	AlternativeStatusPending  = "pending"
	AlternativeStatusAccepted = "accepted"
	AlternativeStatusDeclined = "declined"
)

// AlternativeOffer links a booking whose outcome was alternative_requested to
// the viewing request spawned for the substitute property. On acceptance the
// escrowed amount transfers to the new booking instead of being refunded.
type AlternativeOffer struct {
	ID                uuid.UUID  `json:"id"`
	OriginalBookingID uuid.UUID  `json:"original_booking_id"`
	NewRequestID      uuid.UUID  `json:"new_request_id"`
	PropertyID        uuid.UUID  `json:"property_id"` // the substitute
	OfferedBy         uuid.UUID  `json:"offered_by"`
	Status            string     `json:"status"`
	NewBookingID      *uuid.UUID `json:"new_booking_id,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
