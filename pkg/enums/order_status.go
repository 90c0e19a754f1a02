package enums

import "slices"

// OrderStatus is the commercial state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	return slices.Contains(validOrderStatuses, s)
}

// IsTerminal reports whether no further transition can leave this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

// CountsTowardSpend reports whether an order in this status contributes to
// the buyer's lifetime qualifying spend.
func (s OrderStatus) CountsTowardSpend() bool {
	return s == OrderStatusConfirmed || s == OrderStatusDelivered
}

// InFulfillment reports whether tracking progress may still be mirrored onto
// the order.
func (s OrderStatus) InFulfillment() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped:
		return true
	default:
		return false
	}
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(value, validOrderStatuses, "order status")
}

// OrderDecision is the reviewer verdict on a pending order.
type OrderDecision string

const (
	OrderDecisionApprove OrderDecision = "approve"
	OrderDecisionReject  OrderDecision = "reject"
)

func (d OrderDecision) IsValid() bool {
	return d == OrderDecisionApprove || d == OrderDecisionReject
}
