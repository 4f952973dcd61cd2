package models

import "testing"

func TestIsValidBookingTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{BookingStatusConfirmed, BookingStatusCompleted, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusDisputed, true},

		// Dispute resolution can complete or cancel
		{BookingStatusDisputed, BookingStatusCompleted, true},
		{BookingStatusDisputed, BookingStatusCancelled, true},

		// Terminal states never move
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCompleted, BookingStatusDisputed, false},
		{BookingStatusCancelled, BookingStatusCompleted, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},

		// Nothing re-enters confirmed
		{BookingStatusDisputed, BookingStatusConfirmed, false},

		{"nonexistent", BookingStatusCompleted, false},
		{BookingStatusConfirmed, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidBookingTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidBookingTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalBookingStatuses(t *testing.T) {
	for _, status := range []string{BookingStatusCompleted, BookingStatusCancelled} {
		if !IsTerminalBookingStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
	}
	for _, status := range []string{BookingStatusConfirmed, BookingStatusDisputed} {
		if IsTerminalBookingStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}

func TestIsValidOutcome(t *testing.T) {
	valid := []string{OutcomeCompletedSatisfied, OutcomeIssueReported, OutcomeAlternativeRequested}
	for _, o := range valid {
		if !IsValidOutcome(o) {
			t.Errorf("outcome %q should be valid", o)
		}
	}
	if IsValidOutcome("completed") || IsValidOutcome("") {
		t.Error("unknown outcomes should be invalid")
	}
}

func TestEarningNet(t *testing.T) {
	tests := []struct {
		gross int64
		bps   int
		net   int64
	}{
		{2500, 1000, 2250},  // 10% commission
		{2500, 1500, 2125},  // 15%
		{1000, 0, 1000},     // no commission
		{1, 1000, 0},        // platform cut rounds up
		{999, 1000, 899},    // 99.9 -> 100 commission
		{10000, 333, 9667},  // 333 bps on 10k is exactly 333
	}

	for _, tt := range tests {
		if got := EarningNet(tt.gross, tt.bps); got != tt.net {
			t.Errorf("EarningNet(%d, %d) = %d, want %d", tt.gross, tt.bps, got, tt.net)
		}
	}
}

func TestEscrowIsFinalized(t *testing.T) {
	for _, status := range []string{EscrowStatusReleased, EscrowStatusRefunded} {
		e := EscrowEntry{Status: status}
		if !e.IsFinalized() {
			t.Errorf("escrow status %q should be finalized", status)
		}
	}
	for _, status := range []string{EscrowStatusUnpaid, EscrowStatusEscrow} {
		e := EscrowEntry{Status: status}
		if e.IsFinalized() {
			t.Errorf("escrow status %q should not be finalized", status)
		}
	}
}
