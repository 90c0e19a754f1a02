package enums

import "fmt"

// TrackingStatus is the fulfillment sub-state of an order.
type TrackingStatus string

const (
	TrackingStatusPending        TrackingStatus = "pending"
	TrackingStatusConfirmed      TrackingStatus = "confirmed"
	TrackingStatusPreparing      TrackingStatus = "preparing"
	TrackingStatusOutForDelivery TrackingStatus = "out_for_delivery"
	TrackingStatusDelivered      TrackingStatus = "delivered"
)

// TrackingSteps is the canonical display order used by progress indicators.
var TrackingSteps = []TrackingStatus{
	TrackingStatusPending,
	TrackingStatusConfirmed,
	TrackingStatusPreparing,
	TrackingStatusOutForDelivery,
	TrackingStatusDelivered,
}

var trackingLabels = map[TrackingStatus]string{
	TrackingStatusPending:        "En attente",
	TrackingStatusConfirmed:      "Confirmé",
	TrackingStatusPreparing:      "En préparation",
	TrackingStatusOutForDelivery: "En livraison",
	TrackingStatusDelivered:      "Livré",
}

func (s TrackingStatus) String() string {
	return string(s)
}

func (s TrackingStatus) IsValid() bool {
	_, ok := trackingLabels[s]
	return ok
}

// Label returns the French display label.
func (s TrackingStatus) Label() string {
	return trackingLabels[s]
}

// Index returns the position of s in TrackingSteps, or -1 when unknown.
func (s TrackingStatus) Index() int {
	for i, step := range TrackingSteps {
		if step == s {
			return i
		}
	}
	return -1
}

func (s TrackingStatus) IsTerminal() bool {
	return s == TrackingStatusDelivered
}

func ParseTrackingStatus(value string) (TrackingStatus, error) {
	s := TrackingStatus(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid tracking status %q", value)
	}
	return s, nil
}
