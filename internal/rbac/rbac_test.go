package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		expected   bool
	}{
		{RoleSeeker, PermRequestViewing, true},
		{RoleSeeker, PermCounterSchedule, true},
		{RoleSeeker, PermAcceptSchedule, true},
		{RoleSeeker, PermSubmitOutcome, true},
		{RoleSeeker, PermManageProperty, false},
		{RoleSeeker, PermOfferAlternative, false},
		{RoleSeeker, PermResolveDispute, false},

		// Agents negotiate and manage listings but never open requests or
		// report outcomes on their own properties.
		{RoleAgent, PermCounterSchedule, true},
		{RoleAgent, PermAcceptSchedule, true},
		{RoleAgent, PermManageProperty, true},
		{RoleAgent, PermOfferAlternative, true},
		{RoleAgent, PermSetPayoutAccount, true},
		{RoleAgent, PermViewEarnings, true},
		{RoleAgent, PermRequestViewing, false},
		{RoleAgent, PermSubmitOutcome, false},
		{RoleAgent, PermResolveDispute, false},
		{RoleAgent, PermVerifyPayout, false},

		{RoleAdmin, PermResolveDispute, true},
		{RoleAdmin, PermVerifyPayout, true},

		{"nonexistent", PermRequestViewing, false},
		{RoleSeeker, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.permission, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.permission); got != tt.expected {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.expected)
			}
		})
	}
}

func TestIsArbitration(t *testing.T) {
	if !IsArbitration(PermResolveDispute) {
		t.Error("PermResolveDispute should be arbitration")
	}
	if !IsArbitration(PermVerifyPayout) {
		t.Error("PermVerifyPayout should be arbitration")
	}
	if IsArbitration(PermAcceptSchedule) {
		t.Error("PermAcceptSchedule should not be arbitration")
	}
}
