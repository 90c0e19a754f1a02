package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/api/responses"
	"github.com/angelmondragon/mygros-backend/api/validators"
	product "github.com/angelmondragon/mygros-backend/internal/products"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

const maxSearchLength = 100

// CatalogListProducts serves the public catalogue. Only available products
// are listed.
func CatalogListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return listProducts(svc, logg, false)
}

// AdminListProducts includes unavailable products.
func AdminListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return listProducts(svc, logg, true)
}

func listProducts(svc product.Service, logg *logger.Logger, includeInactive bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}

		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), product.ListInput{
			Filters:         filters,
			Pagination:      page,
			IncludeInactive: includeInactive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseProductFilters(r *http.Request) (product.ListFilters, error) {
	q := r.URL.Query()
	filters := product.ListFilters{
		CategorySlug: validators.SanitizeString(q.Get("category"), maxSearchLength),
		Query:        validators.SanitizeString(q.Get("q"), maxSearchLength),
	}
	var err error
	if filters.CategoryID, err = validators.ParseQueryUUID(r, "category_id"); err != nil {
		return filters, err
	}
	if filters.SupplierID, err = validators.ParseQueryUUID(r, "supplier_id"); err != nil {
		return filters, err
	}
	if filters.Featured, err = validators.ParseQueryBool(r, "featured"); err != nil {
		return filters, err
	}
	if filters.Available, err = validators.ParseQueryBool(r, "available"); err != nil {
		return filters, err
	}
	return filters, nil
}

func CatalogGetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return getProduct(svc, logg, false)
}

func AdminGetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return getProduct(svc, logg, true)
}

func getProduct(svc product.Service, logg *logger.Logger, includeInactive bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		id, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func CatalogListCategories(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		categories, err := svc.ListCategories(r.Context(), false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

type createProductRequest struct {
	SupplierID    *uuid.UUID      `json:"supplier_id,omitempty"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   *string         `json:"description,omitempty"`
	SKU           *string         `json:"sku,omitempty" validate:"omitempty,max=64"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	Unit          string          `json:"unit,omitempty" validate:"omitempty,max=20"`
	MOQ           int             `json:"moq,omitempty" validate:"gte=0"`
	StockQuantity int             `json:"stock_quantity,omitempty" validate:"gte=0"`
	Available     *bool           `json:"available,omitempty"`
	Featured      bool            `json:"featured,omitempty"`
	OriginCountry *string         `json:"origin_country,omitempty"`
	ImageURLs     []string        `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
}

func (p createProductRequest) toInput() product.CreateProductInput {
	available := true
	if p.Available != nil {
		available = *p.Available
	}
	return product.CreateProductInput{
		SupplierID:    p.SupplierID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		SKU:           p.SKU,
		PricePerUnit:  p.PricePerUnit,
		Unit:          p.Unit,
		MOQ:           p.MOQ,
		StockQuantity: p.StockQuantity,
		Available:     available,
		Featured:      p.Featured,
		OriginCountry: p.OriginCountry,
		ImageURLs:     p.ImageURLs,
	}
}

type updateProductRequest struct {
	SupplierID    *uuid.UUID       `json:"supplier_id,omitempty"`
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
	Name          *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description   *string          `json:"description,omitempty"`
	SKU           *string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	PricePerUnit  *decimal.Decimal `json:"price_per_unit,omitempty"`
	Unit          *string          `json:"unit,omitempty" validate:"omitempty,max=20"`
	MOQ           *int             `json:"moq,omitempty" validate:"omitempty,gte=1"`
	StockQuantity *int             `json:"stock_quantity,omitempty" validate:"omitempty,gte=0"`
	Available     *bool            `json:"available,omitempty"`
	Featured      *bool            `json:"featured,omitempty"`
	OriginCountry *string          `json:"origin_country,omitempty"`
}

func (p updateProductRequest) toInput() product.UpdateProductInput {
	return product.UpdateProductInput{
		SupplierID:    p.SupplierID,
		CategoryID:    p.CategoryID,
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
	}
}

func AdminCreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Create(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto)
	}
}

func AdminUpdateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		id, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Update(r.Context(), id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// AdminDeleteProduct refuses products that existing orders still reference.
func AdminDeleteProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		id, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type addImageRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func AdminAddProductImage(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		id, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addImageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.AddImage(r.Context(), id, body.URL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto)
	}
}

func AdminListCategories(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "product")
			return
		}
		categories, err := svc.ListCategories(r.Context(), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}
