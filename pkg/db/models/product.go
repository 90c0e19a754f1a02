package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Slug         string    `gorm:"column:slug;not null"`
	Description  *string   `gorm:"column:description"`
	Icon         *string   `gorm:"column:icon"`
	DisplayOrder int       `gorm:"column:display_order;not null;default:0"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Product is a wholesale catalog listing priced per unit.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID    *uuid.UUID      `gorm:"column:supplier_id;type:uuid"`
	CategoryID    *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Name          string          `gorm:"column:name;not null"`
	Description   *string         `gorm:"column:description"`
	SKU           *string         `gorm:"column:sku"`
	PricePerUnit  decimal.Decimal `gorm:"column:price_per_unit;type:numeric(12,2);not null"`
	Unit          string          `gorm:"column:unit;not null;default:'kg'"`
	MOQ           int             `gorm:"column:moq;not null;default:1"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	Available     bool            `gorm:"column:available;not null"`
	Featured      bool            `gorm:"column:featured;not null"`
	OriginCountry *string         `gorm:"column:origin_country"`
	Category      *Category       `gorm:"foreignKey:CategoryID"`
	Images        []ProductImage  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type ProductImage struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	URL          string    `gorm:"column:url;not null"`
	DisplayOrder int       `gorm:"column:display_order;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
