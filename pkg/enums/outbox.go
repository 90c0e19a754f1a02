package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateTracking      OutboxAggregateType = "delivery_tracking"
	AggregateMessage       OutboxAggregateType = "message"
	AggregateAccessRequest OutboxAggregateType = "access_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateTracking,
	AggregateMessage,
	AggregateAccessRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderValidated        OutboxEventType = "order_validated"
	EventTrackingStatusChanged OutboxEventType = "tracking_status_changed"
	EventDriverAssigned        OutboxEventType = "driver_assigned"
	EventMessagePosted         OutboxEventType = "message_posted"
	EventAccessRequestReviewed OutboxEventType = "access_request_reviewed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderValidated,
	EventTrackingStatusChanged,
	EventDriverAssigned,
	EventMessagePosted,
	EventAccessRequestReviewed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}
