package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per placed order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	CompanyID     *uuid.UUID          `json:"company_id,omitempty"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	DeliveryFee   decimal.Decimal     `json:"delivery_fee"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	DeliveryZone  enums.DeliveryZone  `json:"delivery_zone"`
	ItemCount     int                 `json:"item_count"`
	PlacedAt      time.Time           `json:"placed_at"`
}

// OrderValidatedEvent carries the reviewer decision on a pending order.
type OrderValidatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber int64               `json:"order_number"`
	BuyerID     uuid.UUID           `json:"buyer_id"`
	ReviewerID  uuid.UUID           `json:"reviewer_id"`
	Decision    enums.OrderDecision `json:"decision"`
	Status      enums.OrderStatus   `json:"status"`
	Note        string              `json:"note,omitempty"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	ValidatedAt time.Time           `json:"validated_at"`
}

// TrackingStatusChangedEvent records one delivery step and the order status
// it mirrored onto, if any.
type TrackingStatusChangedEvent struct {
	TrackingID  uuid.UUID            `json:"tracking_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	OrderNumber int64                `json:"order_number"`
	BuyerID     uuid.UUID            `json:"buyer_id"`
	From        enums.TrackingStatus `json:"from"`
	To          enums.TrackingStatus `json:"to"`
	Label       string               `json:"label"`
	OrderStatus enums.OrderStatus    `json:"order_status"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	ChangedBy   uuid.UUID            `json:"changed_by"`
	ChangedAt   time.Time            `json:"changed_at"`
}

type DriverAssignedEvent struct {
	TrackingID uuid.UUID `json:"tracking_id"`
	OrderID    uuid.UUID `json:"order_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	AssignedBy uuid.UUID `json:"assigned_by"`
}

type MessagePostedEvent struct {
	MessageID   uuid.UUID              `json:"message_id"`
	SenderID    uuid.UUID              `json:"sender_id"`
	RecipientID *uuid.UUID             `json:"recipient_id,omitempty"`
	IsBroadcast bool                   `json:"is_broadcast"`
	TargetRole  *enums.MessageAudience `json:"target_role,omitempty"`
}

type AccessRequestReviewedEvent struct {
	RequestID     uuid.UUID                 `json:"request_id"`
	UserID        uuid.UUID                 `json:"user_id"`
	RequestedRole enums.Role                `json:"requested_role"`
	Status        enums.AccessRequestStatus `json:"status"`
	ReviewerID    uuid.UUID                 `json:"reviewer_id"`
}
