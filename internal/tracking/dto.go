package tracking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// Actor is the authenticated caller changing a delivery.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

type AdvanceInput struct {
	TrackingID uuid.UUID
	Status     enums.TrackingStatus
	Actor      Actor
}

type AssignInput struct {
	TrackingID uuid.UUID
	DriverID   uuid.UUID
	AdminID    uuid.UUID
	AdminRole  enums.Role // admin when empty
}

type LocationInput struct {
	TrackingID      uuid.UUID
	Actor           Actor
	Latitude        float64
	Longitude       float64
	CurrentLocation *string
}

// DetailsInput lets dispatch correct carrier data; nil fields are kept.
type DetailsInput struct {
	TrackingID        uuid.UUID
	Carrier           *string
	TrackingNumber    *string
	EstimatedDelivery *time.Time
	Notes             *string
}

// ListFilters narrows the admin delivery list.
type ListFilters struct {
	Status   *enums.TrackingStatus
	DriverID *uuid.UUID
}

// StepDTO is one entry of the five-step progress indicator.
type StepDTO struct {
	Status   enums.TrackingStatus `json:"status"`
	Label    string               `json:"label"`
	Complete bool                 `json:"complete"`
}

type OrderSummaryDTO struct {
	ID                 uuid.UUID         `json:"id"`
	OrderNumber        int64             `json:"order_number"`
	BuyerID            uuid.UUID         `json:"buyer_id"`
	Status             enums.OrderStatus `json:"status"`
	TotalAmount        decimal.Decimal   `json:"total_amount"`
	DeliveryAddress    string            `json:"delivery_address"`
	DeliveryCity       string            `json:"delivery_city"`
	DeliveryPostalCode string            `json:"delivery_postal_code"`
	DeliveryLatitude   *float64          `json:"delivery_latitude,omitempty"`
	DeliveryLongitude  *float64          `json:"delivery_longitude,omitempty"`
	DeliveryTimeSlot   *enums.TimeSlot   `json:"delivery_time_slot,omitempty"`
}

// DeliveryDTO is a tracking record with its progress and order summary.
type DeliveryDTO struct {
	ID                uuid.UUID            `json:"id"`
	OrderID           uuid.UUID            `json:"order_id"`
	Status            enums.TrackingStatus `json:"status"`
	Label             string               `json:"label"`
	Progress          int                  `json:"progress"`
	Steps             []StepDTO            `json:"steps"`
	Carrier           string               `json:"carrier"`
	TrackingNumber    *string              `json:"tracking_number,omitempty"`
	DriverID          *uuid.UUID           `json:"driver_id,omitempty"`
	Latitude          *float64             `json:"latitude,omitempty"`
	Longitude         *float64             `json:"longitude,omitempty"`
	CurrentLocation   *string              `json:"current_location,omitempty"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	Notes             *string              `json:"notes,omitempty"`
	Order             *OrderSummaryDTO     `json:"order,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// DriverSummary backs the driver dashboard counters.
type DriverSummary struct {
	Pending        int64 `json:"pending"`
	InProgress     int64 `json:"in_progress"`
	CompletedToday int64 `json:"completed_today"`
}

// Steps marks every step at or before status as complete.
func Steps(status enums.TrackingStatus) []StepDTO {
	current := status.Index()
	steps := make([]StepDTO, 0, len(enums.TrackingSteps))
	for i, step := range enums.TrackingSteps {
		steps = append(steps, StepDTO{
			Status:   step,
			Label:    step.Label(),
			Complete: current >= 0 && i <= current,
		})
	}
	return steps
}

func newDeliveryDTO(t models.DeliveryTracking, order *models.Order) DeliveryDTO {
	dto := DeliveryDTO{
		ID:                t.ID,
		OrderID:           t.OrderID,
		Status:            t.Status,
		Label:             t.Status.Label(),
		Progress:          t.Status.Index(),
		Steps:             Steps(t.Status),
		Carrier:           t.Carrier,
		TrackingNumber:    t.TrackingNumber,
		DriverID:          t.DriverID,
		Latitude:          t.Latitude,
		Longitude:         t.Longitude,
		CurrentLocation:   t.CurrentLocation,
		EstimatedDelivery: t.EstimatedDelivery,
		DeliveredAt:       t.DeliveredAt,
		Notes:             t.Notes,
		UpdatedAt:         t.UpdatedAt,
	}
	if order != nil {
		dto.Order = &OrderSummaryDTO{
			ID:                 order.ID,
			OrderNumber:        order.OrderNumber,
			BuyerID:            order.BuyerID,
			Status:             order.Status,
			TotalAmount:        order.TotalAmount,
			DeliveryAddress:    order.DeliveryAddress,
			DeliveryCity:       order.DeliveryCity,
			DeliveryPostalCode: order.DeliveryPostalCode,
			DeliveryLatitude:   order.DeliveryLatitude,
			DeliveryLongitude:  order.DeliveryLongitude,
			DeliveryTimeSlot:   order.DeliveryTimeSlot,
		}
	}
	return dto
}
