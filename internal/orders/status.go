package orders

import (
	"time"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
)

var mirroredStatus = map[enums.TrackingStatus]enums.OrderStatus{
	enums.TrackingStatusConfirmed:      enums.OrderStatusConfirmed,
	enums.TrackingStatusPreparing:      enums.OrderStatusProcessing,
	enums.TrackingStatusOutForDelivery: enums.OrderStatusShipped,
	enums.TrackingStatusDelivered:      enums.OrderStatusDelivered,
}

// MirrorStatus derives the order status from a tracking step. It reports
// false when the order must keep its current status: pending and terminal
// orders are never moved by tracking.
func MirrorStatus(current enums.OrderStatus, step enums.TrackingStatus) (enums.OrderStatus, bool) {
	if !current.InFulfillment() {
		return current, false
	}
	next, ok := mirroredStatus[step]
	if !ok || next == current {
		return current, false
	}
	return next, true
}

// ApprovalStatus is the status a pending order ends in when a back-office
// tracking move to step approves it: confirmed, then mirrored.
func ApprovalStatus(step enums.TrackingStatus) enums.OrderStatus {
	if next, ok := MirrorStatus(enums.OrderStatusConfirmed, step); ok {
		return next
	}
	return enums.OrderStatusConfirmed
}

// ValidatedEvent builds the order_validated outbox event.
func ValidatedEvent(order models.Order, reviewer outbox.ActorRef, decision enums.OrderDecision, status enums.OrderStatus, note string, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderValidated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &reviewer,
		Data: payloads.OrderValidatedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			ReviewerID:  reviewer.UserID,
			Decision:    decision,
			Status:      status,
			Note:        note,
			TotalAmount: order.TotalAmount,
			ValidatedAt: at,
		},
	}
}
