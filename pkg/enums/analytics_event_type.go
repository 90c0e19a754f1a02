package enums

import "slices"

// AnalyticsEventType is the sales fact recorded in the warehouse.
type AnalyticsEventType string

const (
	AnalyticsEventOrderPlaced    AnalyticsEventType = "order_placed"
	AnalyticsEventOrderConfirmed AnalyticsEventType = "order_confirmed"
	AnalyticsEventOrderCancelled AnalyticsEventType = "order_cancelled"
	AnalyticsEventOrderDelivered AnalyticsEventType = "order_delivered"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventOrderPlaced,
	AnalyticsEventOrderConfirmed,
	AnalyticsEventOrderCancelled,
	AnalyticsEventOrderDelivered,
}

func (a AnalyticsEventType) IsValid() bool {
	return slices.Contains(validAnalyticsEventTypes, a)
}

func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	return parse(value, validAnalyticsEventTypes, "analytics event type")
}
