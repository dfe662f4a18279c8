package rbac

import "github.com/guidemeet/backend/internal/models"

// Permission constants
const (
	PermBookTour        = "book_tour"
	PermCreateRequest   = "create_request"
	PermRespondRequest  = "respond_request"
	PermConfirmBooking  = "confirm_booking"
	PermResolveDispute  = "resolve_dispute"
	PermViewEvidence    = "view_evidence"
	PermSettleEscrow    = "settle_escrow"
	PermSweepRequests   = "sweep_requests"
	PermReadAllBookings = "read_all_bookings"
)

// RolePermissions defines what each role can do. Participant checks on a
// single booking or request are made by the services.
var RolePermissions = map[string][]string{
	models.RoleTraveler: {
		PermBookTour, PermCreateRequest,
	},
	models.RoleGuide: {
		PermRespondRequest, PermConfirmBooking,
	},
	models.RoleAdmin: {
		PermResolveDispute, PermViewEvidence, PermSettleEscrow,
		PermSweepRequests, PermReadAllBookings,
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

// IsFinancialOperation reports whether permission moves escrowed money
// outside the normal booking lifecycle.
func IsFinancialOperation(permission string) bool {
	return permission == PermSettleEscrow || permission == PermResolveDispute
}
