package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// Order is the header of a placed order. TotalAmount always equals
// Subtotal + DeliveryFee.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        int64               `gorm:"column:order_number;not null"`
	BuyerID            uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	CompanyID          *uuid.UUID          `gorm:"column:company_id;type:uuid"`
	Status             enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Subtotal           decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee        decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DeliveryZone       enums.DeliveryZone  `gorm:"column:delivery_zone;type:delivery_zone;not null"`
	DeliveryAddress    string              `gorm:"column:delivery_address;not null"`
	DeliveryCity       string              `gorm:"column:delivery_city;not null"`
	DeliveryPostalCode string              `gorm:"column:delivery_postal_code;not null"`
	DeliveryLatitude   *float64            `gorm:"column:delivery_latitude"`
	DeliveryLongitude  *float64            `gorm:"column:delivery_longitude"`
	DeliveryTimeSlot   *enums.TimeSlot     `gorm:"column:delivery_time_slot;type:delivery_time_slot"`
	Notes              *string             `gorm:"column:notes"`
	AdminNote          *string             `gorm:"column:admin_note"`
	ValidatedBy        *uuid.UUID          `gorm:"column:validated_by;type:uuid"`
	ValidatedAt        *time.Time          `gorm:"column:validated_at"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID"`
	Tracking           *DeliveryTracking   `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem snapshots the product name and price at placement time.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// DeliveryTracking is the one-per-order fulfillment record.
type DeliveryTracking struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	Status            enums.TrackingStatus `gorm:"column:status;type:tracking_status;not null;default:'pending'"`
	Carrier           string               `gorm:"column:carrier;not null"`
	TrackingNumber    *string              `gorm:"column:tracking_number"`
	DriverID          *uuid.UUID           `gorm:"column:driver_id;type:uuid"`
	Latitude          *float64             `gorm:"column:latitude"`
	Longitude         *float64             `gorm:"column:longitude"`
	CurrentLocation   *string              `gorm:"column:current_location"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	DeliveredAt       *time.Time           `gorm:"column:delivered_at"`
	Notes             *string              `gorm:"column:notes"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeliveryTracking) TableName() string {
	return "delivery_tracking"
}

func (t *DeliveryTracking) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
