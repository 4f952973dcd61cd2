package events

import "context"

// Event types
const (
	EventRequestStatusChanged = "request_status_changed"
	EventBookingStatusChanged = "booking_status_changed"
	EventPaymentHeld          = "payment_held"
	EventPaymentReleased      = "payment_released"
	EventPaymentRefunded      = "payment_refunded"
	EventReschedule           = "reschedule_updated"
	EventAlternative          = "alternative_updated"
	EventDisputeUpdated       = "dispute_updated"
)

// Stream carrying all viewing-transaction events.
const StreamViewing = "events:viewing"

// Event is one state change on the stream. Parties lists the user ids the
// event concerns; the WS hub delivers only to them. An empty list means the
// event is not user-scoped and fans out to every connection.
type Event struct {
	Type    string         `json:"type"`
	Parties []string       `json:"parties,omitempty"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
