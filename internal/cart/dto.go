package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/checkout"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
)

type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// LineDTO is one cart line priced at the current catalogue price.
type LineDTO struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	CategoryName string          `json:"category_name,omitempty"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	MOQ          int             `json:"moq"`
	Available    bool            `json:"available"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// SupplierGroup gathers the lines a single supplier fulfils.
type SupplierGroup struct {
	SupplierID *uuid.UUID      `json:"supplier_id,omitempty"`
	Items      []LineDTO       `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type CartDTO struct {
	ID          uuid.UUID               `json:"id"`
	Items       []LineDTO               `json:"items"`
	ItemCount   int                     `json:"item_count"`
	Total       decimal.Decimal         `json:"total"`
	Suppliers   []SupplierGroup         `json:"suppliers"`
	MOQWarnings []checkout.MOQShortfall `json:"moq_warnings,omitempty"`
}

func newLineDTO(item models.CartItem) LineDTO {
	line := LineDTO{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
	}
	if p := item.Product; p != nil {
		line.ProductName = p.Name
		line.SupplierID = p.SupplierID
		line.Unit = p.Unit
		line.UnitPrice = p.PricePerUnit
		line.MOQ = p.MOQ
		line.Available = p.Available
		if p.Category != nil {
			line.CategoryName = p.Category.Name
		}
	}
	line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
	return line
}

func newCartDTO(cart *models.Cart, items []models.CartItem) *CartDTO {
	lines := make([]LineDTO, 0, len(items))
	moq := make([]checkout.MOQLine, 0, len(items))
	count := 0
	for _, item := range items {
		line := newLineDTO(item)
		lines = append(lines, line)
		moq = append(moq, checkout.MOQLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			MOQ:         line.MOQ,
			Quantity:    line.Quantity,
		})
		count += line.Quantity
	}
	return &CartDTO{
		ID:          cart.ID,
		Items:       lines,
		ItemCount:   count,
		Total:       Total(lines),
		Suppliers:   GroupBySupplier(lines),
		MOQWarnings: checkout.MOQShortfalls(moq),
	}
}

// Total sums line subtotals.
func Total(lines []LineDTO) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total.Round(2)
}

// GroupBySupplier splits lines per supplier in first-seen order. Lines with
// no supplier form their own group, listed last.
func GroupBySupplier(lines []LineDTO) []SupplierGroup {
	index := map[uuid.UUID]int{}
	var groups []SupplierGroup
	var orphan *SupplierGroup
	for _, line := range lines {
		if line.SupplierID == nil {
			if orphan == nil {
				orphan = &SupplierGroup{Subtotal: decimal.Zero}
			}
			orphan.Items = append(orphan.Items, line)
			orphan.Subtotal = orphan.Subtotal.Add(line.Subtotal)
			continue
		}
		i, ok := index[*line.SupplierID]
		if !ok {
			i = len(groups)
			index[*line.SupplierID] = i
			groups = append(groups, SupplierGroup{SupplierID: line.SupplierID, Subtotal: decimal.Zero})
		}
		groups[i].Items = append(groups[i].Items, line)
		groups[i].Subtotal = groups[i].Subtotal.Add(line.Subtotal)
	}
	if orphan != nil {
		groups = append(groups, *orphan)
	}
	if groups == nil {
		groups = []SupplierGroup{}
	}
	return groups
}
