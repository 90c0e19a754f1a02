package enums

import "fmt"

// DeliveryZone selects the fee schedule and carrier of an order.
type DeliveryZone string

const (
	DeliveryZoneLocal    DeliveryZone = "local"
	DeliveryZoneNational DeliveryZone = "national"
)

func (z DeliveryZone) IsValid() bool {
	return z == DeliveryZoneLocal || z == DeliveryZoneNational
}

func ParseDeliveryZone(value string) (DeliveryZone, error) {
	z := DeliveryZone(value)
	if !z.IsValid() {
		return "", fmt.Errorf("invalid delivery zone %q", value)
	}
	return z, nil
}

type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
)

func (t TimeSlot) IsValid() bool {
	return t == TimeSlotMorning || t == TimeSlotAfternoon
}
