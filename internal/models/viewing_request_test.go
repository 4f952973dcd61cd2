package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsValidRequestTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{RequestStatusPending, RequestStatusAccepted, true},
		{RequestStatusPending, RequestStatusCountered, true},
		{RequestStatusPending, RequestStatusRejected, true},
		{RequestStatusPending, RequestStatusCancelled, true},
		{RequestStatusCountered, RequestStatusAccepted, true},
		{RequestStatusCountered, RequestStatusRejected, true},
		{RequestStatusCountered, RequestStatusCancelled, true},

		// Multi-round countering
		{RequestStatusCountered, RequestStatusCountered, true},

		// Terminal states never move
		{RequestStatusAccepted, RequestStatusCancelled, false},
		{RequestStatusAccepted, RequestStatusCountered, false},
		{RequestStatusRejected, RequestStatusPending, false},
		{RequestStatusCancelled, RequestStatusAccepted, false},

		// Nothing re-enters pending
		{RequestStatusCountered, RequestStatusPending, false},
		{RequestStatusPending, RequestStatusPending, false},

		{"nonexistent", RequestStatusAccepted, false},
		{RequestStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidRequestTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidRequestTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalRequestStatuses(t *testing.T) {
	terminal := []string{RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled}
	for _, status := range terminal {
		if !IsTerminalRequestStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
	}
	for _, status := range []string{RequestStatusPending, RequestStatusCountered} {
		if IsTerminalRequestStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}

func TestActiveProposer(t *testing.T) {
	requester := uuid.New()
	agent := uuid.New()

	r := ViewingRequest{RequesterID: requester, AgentID: agent}
	if got := r.ActiveProposer(); got != requester {
		t.Errorf("without a counter the requester is the active proposer, got %s", got)
	}

	r.Counter = &CounterProposal{Date: "2026-09-10", TimeWindow: "10:00-11:00", ProposedBy: agent}
	if got := r.ActiveProposer(); got != agent {
		t.Errorf("counter author should be the active proposer, got %s", got)
	}

	// Re-counter by the requester flips it back
	r.Counter.ProposedBy = requester
	if got := r.ActiveProposer(); got != requester {
		t.Errorf("re-counter author should be the active proposer, got %s", got)
	}
}

func TestCounterparty(t *testing.T) {
	requester := uuid.New()
	agent := uuid.New()
	r := ViewingRequest{RequesterID: requester, AgentID: agent}

	if r.Counterparty(requester) != agent {
		t.Error("counterparty of the requester should be the agent")
	}
	if r.Counterparty(agent) != requester {
		t.Error("counterparty of the agent should be the requester")
	}
	if !r.IsParty(requester) || !r.IsParty(agent) {
		t.Error("both sides should be parties")
	}
	if r.IsParty(uuid.New()) {
		t.Error("a stranger is not a party")
	}
}
