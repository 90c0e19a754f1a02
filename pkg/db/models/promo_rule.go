package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromoRule is one loyalty tier keyed by lifetime spend threshold.
type PromoRule struct {
	ID                     uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name                   string          `gorm:"column:name;not null"`
	ThresholdTotalSpent    decimal.Decimal `gorm:"column:threshold_total_spent;type:numeric(12,2);not null"`
	DeliveryDiscountAmount decimal.Decimal `gorm:"column:delivery_discount_amount;type:numeric(12,2);not null;default:0"`
	PercentDiscount        decimal.Decimal `gorm:"column:percent_discount;type:numeric(5,2);not null;default:0"`
	Active                 bool            `gorm:"column:active;not null"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PromoRule) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
