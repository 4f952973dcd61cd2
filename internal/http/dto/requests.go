package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/kejaview/backend/internal/models"
)

// Validate is the shared request validator; handlers run it after BodyParser.
var Validate = validator.New()

type LoginRequest struct {
	Phone       string  `json:"phone" validate:"required,e164"`
	DisplayName *string `json:"display_name,omitempty"`
	Role        string  `json:"role" validate:"required,oneof=seeker agent"`
}

type CreatePropertyRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Area  string `json:"area" validate:"required,max=120"`
}

type AssignBundleRequest struct {
	PackageGroupID string `json:"package_group_id" validate:"required,uuid4"`
}

type ProposedSlotDTO struct {
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeWindow string `json:"time_window" validate:"required"`
}

type CreateRequestRequest struct {
	PropertyID    string            `json:"property_id" validate:"required,uuid4"`
	PackageTierID string            `json:"package_tier_id" validate:"required,uuid4"`
	ProposedSlots []ProposedSlotDTO `json:"proposed_slots" validate:"required,min=1,max=5,dive"`
	PayerMSISDN   string            `json:"payer_msisdn" validate:"required"`
}

type RetryPaymentRequest struct {
	PayerMSISDN string `json:"payer_msisdn" validate:"required"`
}

type CounterRequest struct {
	Date       string           `json:"date" validate:"required,datetime=2006-01-02"`
	TimeWindow string           `json:"time_window" validate:"required"`
	Location   *models.GeoPoint `json:"location,omitempty"`
}

// AcceptRequestRequest optionally carries an explicit schedule; when both
// fields are set they win over any pending counter-proposal.
type AcceptRequestRequest struct {
	SlotIndex  int    `json:"slot_index" validate:"min=0,max=4"`
	Date       string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TimeWindow string `json:"time_window,omitempty"`
}

// PaymentCallbackRequest is the gateway's escrow confirmation. The shared key
// rides in a header, not the body.
type PaymentCallbackRequest struct {
	RequestID   string `json:"request_id" validate:"required,uuid4"`
	Receipt     string `json:"receipt" validate:"required"`
	PayerMSISDN string `json:"payer_msisdn" validate:"required"`
	AmountKES   int64  `json:"amount_kes" validate:"required,gt=0"`
}

type SubmitOutcomeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=completed_satisfied issue_reported alternative_requested"`
}

type MeetingPointRequest struct {
	Type     string           `json:"type" validate:"required,oneof=at_property landmark"`
	Location *models.GeoPoint `json:"location,omitempty"`
}

type MeetingAckRequest struct {
	Accept bool `json:"accept"`
}

type CreateRescheduleRequest struct {
	Date     string           `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string           `json:"time" validate:"required,datetime=15:04"`
	EndTime  string           `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	Location *models.GeoPoint `json:"location,omitempty"`
}

type OfferAlternativeRequest struct {
	PropertyID string `json:"property_id" validate:"required,uuid4"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeWindow string `json:"time_window" validate:"required"`
}

type OpenDisputeRequest struct {
	Category     string   `json:"category" validate:"required,oneof=viewing_issue no_show_seeker no_show_agent alternative_declined"`
	Description  string   `json:"description" validate:"required,max=2000"`
	EvidenceRefs []string `json:"evidence_refs,omitempty" validate:"max=10"`
}

type ResolveDisputeRequest struct {
	Resolution string  `json:"resolution" validate:"required,oneof=release refund dismiss"`
	Notes      *string `json:"notes,omitempty"`
}

type SetPayoutAccountRequest struct {
	MSISDN string `json:"msisdn" validate:"required"`
}

type ConfirmPayoutAccountRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}
