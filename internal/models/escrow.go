package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow entry statuses. unpaid -> escrow is driven by the gateway confirmation
// callback; escrow -> released/refunded is one-way and guarded in the repo.
const (
	EscrowStatusUnpaid   = "unpaid"
	EscrowStatusEscrow   = "escrow"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// EscrowEntry tracks custody of a single payment. It is created with the
// viewing request and attached to the booking spawned on acceptance. No other
// component mutates payment state directly.
type EscrowEntry struct {
	ID        uuid.UUID  `json:"id"`
	RequestID uuid.UUID  `json:"request_id"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	AmountKES int64      `json:"amount_kes"`
	Status    string     `json:"status"`

	// GatewayReceipt is the payment gateway's confirmation reference; it makes
	// the unpaid -> escrow callback idempotent.
	GatewayReceipt *string `json:"gateway_receipt,omitempty"`
	PayerMSISDN    *string `json:"payer_msisdn,omitempty"`

	HeldAt *time.Time `json:"held_at,omitempty"`
	// ReleasedAsTransfer marks a release that handed the hold to a substitute
	// booking instead of paying the agent; no earning row exists for it.
	ReleasedAsTransfer bool       `json:"released_as_transfer"`
	ReleasedAt         *time.Time `json:"released_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (e *EscrowEntry) IsFinalized() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}

// AgentEarning is the derived artifact of an escrow release: the agent's share
// of the amount at the commission rate in force at the moment of release.
type AgentEarning struct {
	ID            uuid.UUID `json:"id"`
	AgentID       uuid.UUID `json:"agent_id"`
	BookingID     uuid.UUID `json:"booking_id"`
	GrossKES      int64     `json:"gross_kes"`
	CommissionBPS int       `json:"commission_bps"`
	NetKES        int64     `json:"net_kes"`
	CreatedAt     time.Time `json:"created_at"`
}

// EarningNet computes the agent's share of gross at the given commission rate,
// rounding the platform's cut up so the split never overpays.
func EarningNet(grossKES int64, commissionBPS int) int64 {
	commission := (grossKES*int64(commissionBPS) + 9999) / 10000
	return grossKES - commission
}
