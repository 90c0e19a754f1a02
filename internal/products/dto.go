package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

type CategoryDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description,omitempty"`
	Icon         *string   `json:"icon,omitempty"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
}

type ImageDTO struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	DisplayOrder int       `json:"display_order"`
}

// ProductDTO is the catalogue representation of a product.
type ProductDTO struct {
	ID            uuid.UUID       `json:"id"`
	SupplierID    *uuid.UUID      `json:"supplier_id,omitempty"`
	Category      *CategoryDTO    `json:"category,omitempty"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	SKU           *string         `json:"sku,omitempty"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	Unit          string          `json:"unit"`
	MOQ           int             `json:"moq"`
	StockQuantity int             `json:"stock_quantity"`
	Available     bool            `json:"available"`
	Featured      bool            `json:"featured"`
	OriginCountry *string         `json:"origin_country,omitempty"`
	Images        []ImageDTO      `json:"images"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateProductInput holds the payload to create a product.
type CreateProductInput struct {
	SupplierID    *uuid.UUID
	CategoryID    *uuid.UUID
	Name          string
	Description   *string
	SKU           *string
	PricePerUnit  decimal.Decimal
	Unit          string
	MOQ           int
	StockQuantity int
	Available     bool
	Featured      bool
	OriginCountry *string
	ImageURLs     []string
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SupplierID    *uuid.UUID
	CategoryID    *uuid.UUID
	Name          *string
	Description   *string
	SKU           *string
	PricePerUnit  *decimal.Decimal
	Unit          *string
	MOQ           *int
	StockQuantity *int
	Available     *bool
	Featured      *bool
	OriginCountry *string
}

func newCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		Icon:         c.Icon,
		DisplayOrder: c.DisplayOrder,
		Active:       c.Active,
	}
}

func newProductDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:            p.ID,
		SupplierID:    p.SupplierID,
		Name:          p.Name,
		Description:   p.Description,
		SKU:           p.SKU,
		PricePerUnit:  p.PricePerUnit,
		Unit:          p.Unit,
		MOQ:           p.MOQ,
		StockQuantity: p.StockQuantity,
		Available:     p.Available,
		Featured:      p.Featured,
		OriginCountry: p.OriginCountry,
		Images:        make([]ImageDTO, 0, len(p.Images)),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Category != nil {
		c := newCategoryDTO(*p.Category)
		dto.Category = &c
	}
	for _, img := range p.Images {
		dto.Images = append(dto.Images, ImageDTO{ID: img.ID, URL: img.URL, DisplayOrder: img.DisplayOrder})
	}
	return dto
}

func (in CreateProductInput) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if in.PricePerUnit.IsNegative() {
		fields["price_per_unit"] = "must be zero or more"
	}
	if in.MOQ < 0 {
		fields["moq"] = "must be zero or more"
	}
	if in.StockQuantity < 0 {
		fields["stock_quantity"] = "must be zero or more"
	}
	for _, u := range in.ImageURLs {
		if !validImageURL(u) {
			fields["image_urls"] = "must be http(s) URLs"
			break
		}
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(fields)
	}
	return nil
}

func (in UpdateProductInput) updates() (map[string]any, error) {
	fields := map[string]string{}
	out := map[string]any{}
	if in.SupplierID != nil {
		out["supplier_id"] = *in.SupplierID
	}
	if in.CategoryID != nil {
		out["category_id"] = *in.CategoryID
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			fields["name"] = "required"
		}
		out["name"] = name
	}
	if in.Description != nil {
		out["description"] = *in.Description
	}
	if in.SKU != nil {
		out["sku"] = strings.TrimSpace(*in.SKU)
	}
	if in.PricePerUnit != nil {
		if in.PricePerUnit.IsNegative() {
			fields["price_per_unit"] = "must be zero or more"
		}
		out["price_per_unit"] = in.PricePerUnit.Round(2)
	}
	if in.Unit != nil {
		out["unit"] = strings.TrimSpace(*in.Unit)
	}
	if in.MOQ != nil {
		if *in.MOQ < 0 {
			fields["moq"] = "must be zero or more"
		}
		out["moq"] = *in.MOQ
	}
	if in.StockQuantity != nil {
		if *in.StockQuantity < 0 {
			fields["stock_quantity"] = "must be zero or more"
		}
		out["stock_quantity"] = *in.StockQuantity
	}
	if in.Available != nil {
		out["available"] = *in.Available
	}
	if in.Featured != nil {
		out["featured"] = *in.Featured
	}
	if in.OriginCountry != nil {
		out["origin_country"] = strings.TrimSpace(*in.OriginCountry)
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(fields)
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	return out, nil
}

func validImageURL(u string) bool {
	u = strings.TrimSpace(u)
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}
