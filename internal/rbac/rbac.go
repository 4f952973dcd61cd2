package rbac

// Role constants
const (
	RoleSeeker = "seeker"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

// Permission constants
const (
	PermRequestViewing    = "request_viewing"
	PermCounterSchedule   = "counter_schedule"
	PermAcceptSchedule    = "accept_schedule"
	PermSubmitOutcome     = "submit_outcome"
	PermManageProperty    = "manage_property"
	PermOfferAlternative  = "offer_alternative"
	PermSetPayoutAccount  = "set_payout_account"
	PermViewEarnings      = "view_earnings"
	PermResolveDispute    = "resolve_dispute"
	PermVerifyPayout      = "verify_payout"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleSeeker: {
		PermRequestViewing, PermCounterSchedule, PermAcceptSchedule, PermSubmitOutcome,
	},
	RoleAgent: {
		PermCounterSchedule, PermAcceptSchedule, PermManageProperty, PermOfferAlternative,
		PermSetPayoutAccount, PermViewEarnings,
		// Agent CANNOT: PermRequestViewing (no self-dealing), PermSubmitOutcome
	},
	RoleAdmin: {
		PermResolveDispute, PermVerifyPayout, PermViewEarnings,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsArbitration checks if permission is an arbitration action (admin-only).
func IsArbitration(permission string) bool {
	return permission == PermResolveDispute || permission == PermVerifyPayout
}
