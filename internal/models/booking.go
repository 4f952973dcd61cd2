package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking statuses
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusDisputed  = "disputed"
)

// Booking payment statuses. A booking is only ever created against held funds,
// so "escrow" is the initial state; released/refunded are terminal and one-way.
const (
	BookingPaymentEscrow   = "escrow"
	BookingPaymentReleased = "released"
	BookingPaymentRefunded = "refunded"
)

// Viewing outcomes, submitted by the seeker after the physical meeting.
const (
	OutcomeCompletedSatisfied   = "completed_satisfied"
	OutcomeIssueReported        = "issue_reported"
	OutcomeAlternativeRequested = "alternative_requested"
)

// Valid booking state transitions: from -> []to
var ValidBookingTransitions = map[string][]string{
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled, BookingStatusDisputed},
	BookingStatusDisputed:  {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
}

func IsValidBookingTransition(from, to string) bool {
	allowed, ok := ValidBookingTransitions[from]
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

func IsTerminalBookingStatus(status string) bool {
	return len(ValidBookingTransitions[status]) == 0
}

func IsValidOutcome(o string) bool {
	switch o {
	case OutcomeCompletedSatisfied, OutcomeIssueReported, OutcomeAlternativeRequested:
		return true
	}
	return false
}

type Booking struct {
	ID            uuid.UUID `json:"id"`
	RequestID     uuid.UUID `json:"request_id"`
	PropertyID    uuid.UUID `json:"property_id"`
	SeekerID      uuid.UUID `json:"seeker_id"`
	AgentID       uuid.UUID `json:"agent_id"`
	AmountKES     int64     `json:"amount_kes"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`

	ScheduledDate    string `json:"scheduled_date"`     // YYYY-MM-DD
	ScheduledTime    string `json:"scheduled_time"`     // HH:MM
	ScheduledEndTime string `json:"scheduled_end_time"` // HH:MM

	// AutoReleaseAt is scheduled end plus the grace period; past it the sweeper
	// finalizes the booking unless a dispute is open.
	AutoReleaseAt time.Time `json:"auto_release_at"`

	SeekerArrived bool `json:"seeker_arrived"`
	AgentArrived  bool `json:"agent_arrived"`
	// PhysicalMeetingConfirmed is the AND of both arrival flags, stamped when the
	// second party confirms.
	PhysicalMeetingConfirmed bool `json:"physical_meeting_confirmed"`

	Outcome *string `json:"outcome,omitempty"`

	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsParty reports whether userID is the seeker or the agent on this booking.
func (b *Booking) IsParty(userID uuid.UUID) bool {
	return userID == b.SeekerID || userID == b.AgentID
}

// BookingWithProperty embeds Booking plus property info for list endpoints.
type BookingWithProperty struct {
	Booking
	PropertyTitle *string `json:"property_title,omitempty"`
	PropertyArea  *string `json:"property_area,omitempty"`
}

// MeetingPoint types
const (
	MeetingAtProperty = "at_property"
	MeetingLandmark   = "landmark"
)

// MeetingPoint acknowledgment states (per counterparty)
const (
	MeetingAckPending  = "pending"
	MeetingAckAccepted = "accepted"
	MeetingAckRejected = "rejected"
)

// MeetingPoint is where the parties physically meet. One per booking, mutable
// until the meeting is confirmed.
type MeetingPoint struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Type       string    `json:"type"`
	Location   *GeoPoint `json:"location,omitempty"`
	ProposedBy uuid.UUID `json:"proposed_by"`
	AckStatus  string    `json:"ack_status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func IsValidMeetingType(t string) bool {
	return t == MeetingAtProperty || t == MeetingLandmark
}
