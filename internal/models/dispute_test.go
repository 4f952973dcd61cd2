package models

import "testing"

func TestIsValidDisputeTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{DisputeStatusOpen, DisputeStatusInProgress, true},
		{DisputeStatusOpen, DisputeStatusResolved, true},
		{DisputeStatusInProgress, DisputeStatusResolved, true},

		{DisputeStatusResolved, DisputeStatusOpen, false},
		{DisputeStatusInProgress, DisputeStatusOpen, false},
		{DisputeStatusResolved, DisputeStatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := IsValidDisputeTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidDisputeTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestIsValidRescheduleTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{RescheduleStatusPending, RescheduleStatusAccepted, true},
		{RescheduleStatusPending, RescheduleStatusRejected, true},
		{RescheduleStatusPending, RescheduleStatusCountered, true},
		{RescheduleStatusCountered, RescheduleStatusAccepted, true},
		{RescheduleStatusCountered, RescheduleStatusRejected, true},

		// A countered reschedule is not countered again; decline and start over.
		{RescheduleStatusCountered, RescheduleStatusCountered, false},
		{RescheduleStatusAccepted, RescheduleStatusRejected, false},
		{RescheduleStatusRejected, RescheduleStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := IsValidRescheduleTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidRescheduleTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestDisputeCategoryAndResolution(t *testing.T) {
	for _, c := range []string{DisputeViewingIssue, DisputeNoShowSeeker, DisputeNoShowAgent, DisputeAlternativeDeclined} {
		if !IsValidDisputeCategory(c) {
			t.Errorf("category %q should be valid", c)
		}
	}
	if IsValidDisputeCategory("fraud") {
		t.Error("unknown category should be invalid")
	}

	for _, r := range []string{ResolutionRelease, ResolutionRefund, ResolutionDismiss} {
		if !IsValidResolution(r) {
			t.Errorf("resolution %q should be valid", r)
		}
	}
	if IsValidResolution("split") {
		t.Error("unknown resolution should be invalid")
	}
}
