package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// LineInput is one cart line with the catalog price already snapshotted.
type LineInput struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// DeliveryAddress is where the order ships.
type DeliveryAddress struct {
	Address    string
	City       string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

// PlaceInput carries everything needed to create an order.
type PlaceInput struct {
	BuyerID       uuid.UUID
	CompanyID     *uuid.UUID
	Lines         []LineInput
	Zone          enums.DeliveryZone
	Address       DeliveryAddress
	PaymentMethod enums.PaymentMethod
	TimeSlot      *enums.TimeSlot
	Notes         *string
}

// ValidateInput is the reviewer's decision on a pending order.
type ValidateInput struct {
	OrderID      uuid.UUID
	ReviewerID   uuid.UUID
	ReviewerRole enums.Role // admin when empty
	Decision     enums.OrderDecision
	Note         *string
}

// Viewer identifies who is reading an order.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.Role
}

// AdminListFilters narrows the admin order list.
type AdminListFilters struct {
	Status *enums.OrderStatus
}

type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// TrackingSummaryDTO is the delivery view embedded in an order.
type TrackingSummaryDTO struct {
	ID              uuid.UUID            `json:"id"`
	Status          enums.TrackingStatus `json:"status"`
	Label           string               `json:"label"`
	Step            int                  `json:"step"`
	Carrier         string               `json:"carrier"`
	TrackingNumber  *string              `json:"tracking_number,omitempty"`
	DriverID        *uuid.UUID           `json:"driver_id,omitempty"`
	CurrentLocation *string              `json:"current_location,omitempty"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
}

type OrderDTO struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        int64               `json:"order_number"`
	BuyerID            uuid.UUID           `json:"buyer_id"`
	CompanyID          *uuid.UUID          `json:"company_id,omitempty"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	DeliveryFee        decimal.Decimal     `json:"delivery_fee"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	DeliveryZone       enums.DeliveryZone  `json:"delivery_zone"`
	DeliveryAddress    string              `json:"delivery_address"`
	DeliveryCity       string              `json:"delivery_city"`
	DeliveryPostalCode string              `json:"delivery_postal_code"`
	DeliveryTimeSlot   *enums.TimeSlot     `json:"delivery_time_slot,omitempty"`
	Notes              *string             `json:"notes,omitempty"`
	AdminNote          *string             `json:"admin_note,omitempty"`
	ValidatedBy        *uuid.UUID          `json:"validated_by,omitempty"`
	ValidatedAt        *time.Time          `json:"validated_at,omitempty"`
	Items              []OrderItemDTO      `json:"items,omitempty"`
	Tracking           *TrackingSummaryDTO `json:"tracking,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// OrderList is one cursor page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// AdminStats feeds the admin dashboard.
type AdminStats struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	OlivesRevenue   decimal.Decimal `json:"olives_condiments_revenue"`
	EpicerieRevenue decimal.Decimal `json:"epicerie_revenue"`
	PendingOrders   int64           `json:"pending_orders"`
}

// NewOrderDTO maps an order and whatever associations were preloaded.
func NewOrderDTO(m models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 m.ID,
		OrderNumber:        m.OrderNumber,
		BuyerID:            m.BuyerID,
		CompanyID:          m.CompanyID,
		Status:             m.Status,
		PaymentMethod:      m.PaymentMethod,
		PaymentStatus:      m.PaymentStatus,
		Subtotal:           m.Subtotal,
		DeliveryFee:        m.DeliveryFee,
		TotalAmount:        m.TotalAmount,
		DeliveryZone:       m.DeliveryZone,
		DeliveryAddress:    m.DeliveryAddress,
		DeliveryCity:       m.DeliveryCity,
		DeliveryPostalCode: m.DeliveryPostalCode,
		DeliveryTimeSlot:   m.DeliveryTimeSlot,
		Notes:              m.Notes,
		AdminNote:          m.AdminNote,
		ValidatedBy:        m.ValidatedBy,
		ValidatedAt:        m.ValidatedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		})
	}
	if m.Tracking != nil {
		t := NewTrackingSummaryDTO(*m.Tracking)
		dto.Tracking = &t
	}
	return dto
}

func NewTrackingSummaryDTO(t models.DeliveryTracking) TrackingSummaryDTO {
	return TrackingSummaryDTO{
		ID:              t.ID,
		Status:          t.Status,
		Label:           t.Status.Label(),
		Step:            t.Status.Index(),
		Carrier:         t.Carrier,
		TrackingNumber:  t.TrackingNumber,
		DriverID:        t.DriverID,
		CurrentLocation: t.CurrentLocation,
		DeliveredAt:     t.DeliveredAt,
	}
}
