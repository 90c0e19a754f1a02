package enums

import "slices"

// Role is the closed set of account roles.
type Role string

const (
	RoleBuyer      Role = "buyer"
	RoleSupplier   Role = "supplier"
	RoleAdmin      Role = "admin"
	RoleCommercial Role = "commercial"
	RoleDriver     Role = "driver"
)

var validRoles = []Role{
	RoleBuyer,
	RoleSupplier,
	RoleAdmin,
	RoleCommercial,
	RoleDriver,
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return slices.Contains(validRoles, r)
}

func ParseRole(value string) (Role, error) {
	return parse(value, validRoles, "role")
}

// Capability names an action gated at the HTTP boundary.
type Capability string

const (
	CapManageCart             Capability = "cart:manage"
	CapPlaceOrder             Capability = "orders:place"
	CapViewOwnOrders          Capability = "orders:view_own"
	CapViewPromo              Capability = "promo:view"
	CapViewAllOrders          Capability = "orders:view_all"
	CapValidateOrders         Capability = "orders:validate"
	CapManageTracking         Capability = "tracking:manage"
	CapAdvanceDelivery        Capability = "tracking:advance"
	CapViewAssignedDeliveries Capability = "tracking:view_assigned"
	CapManageCatalog          Capability = "catalog:manage"
	CapManagePromoRules       Capability = "promo:manage"
	CapRequestAccess          Capability = "access:request"
	CapReviewAccessRequests   Capability = "access:review"
	CapSendMessages           Capability = "messages:send"
	CapBroadcastMessages      Capability = "messages:broadcast"
	CapManageContact          Capability = "contact:manage"
	CapFileVisitReports       Capability = "visits:file"
	CapViewAllVisitReports    Capability = "visits:view_all"
	CapViewDashboard          Capability = "dashboard:view"
	CapManageUsers            Capability = "users:manage"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleBuyer: capSet(
		CapManageCart,
		CapPlaceOrder,
		CapViewOwnOrders,
		CapViewPromo,
		CapRequestAccess,
		CapSendMessages,
	),
	RoleSupplier: capSet(
		CapRequestAccess,
		CapSendMessages,
	),
	// commercial shares the back office except the admin-only screens.
	RoleCommercial: capSet(
		CapViewAllOrders,
		CapValidateOrders,
		CapManageTracking,
		CapAdvanceDelivery,
		CapManageCatalog,
		CapSendMessages,
		CapBroadcastMessages,
		CapManageContact,
		CapFileVisitReports,
		CapViewAllVisitReports,
		CapViewDashboard,
		CapRequestAccess,
	),
	RoleDriver: capSet(
		CapAdvanceDelivery,
		CapViewAssignedDeliveries,
		CapRequestAccess,
		CapSendMessages,
	),
	RoleAdmin: capSet(
		CapViewAllOrders,
		CapValidateOrders,
		CapManageTracking,
		CapAdvanceDelivery,
		CapManageCatalog,
		CapManagePromoRules,
		CapReviewAccessRequests,
		CapSendMessages,
		CapBroadcastMessages,
		CapManageContact,
		CapViewAllVisitReports,
		CapViewDashboard,
		CapManageUsers,
	),
}

func capSet(caps ...Capability) map[Capability]struct{} {
	out := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		out[c] = struct{}{}
	}
	return out
}

// IsBackOffice reports whether the role staffs the back office.
func (r Role) IsBackOffice() bool {
	return r == RoleAdmin || r == RoleCommercial
}

// Can reports whether the role is granted the capability.
func (r Role) Can(c Capability) bool {
	_, ok := roleCapabilities[r][c]
	return ok
}
