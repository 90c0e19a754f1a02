package product

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

// ListFilters describe the supported filter knobs for the catalogue browse endpoint.
type ListFilters struct {
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	CategorySlug string     `json:"category,omitempty"`
	SupplierID   *uuid.UUID `json:"supplier_id,omitempty"`
	Featured     *bool      `json:"featured,omitempty"`
	Available    *bool      `json:"available,omitempty"`
	Query        string     `json:"q,omitempty"`
}

// ListInput captures the inputs needed to paginate and filter the catalogue.
// Public callers only ever see available products.
type ListInput struct {
	Filters         ListFilters
	Pagination      pagination.Params
	IncludeInactive bool
}

type ListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
