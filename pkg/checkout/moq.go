package checkout

import (
	"github.com/google/uuid"
)

// MOQLine describes one cart line checked against its product minimum.
type MOQLine struct {
	ProductID   uuid.UUID
	ProductName string
	MOQ         int
	Quantity    int
}

// MOQShortfall is reported to buyers when a line is under the product
// minimum. Orders below the minimum are still accepted.
type MOQShortfall struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	RequiredQty  int       `json:"required_qty"`
	RequestedQty int       `json:"requested_qty"`
}

// MOQShortfalls returns every line whose quantity is below its MOQ, in input order.
func MOQShortfalls(lines []MOQLine) []MOQShortfall {
	var out []MOQShortfall
	for _, line := range lines {
		if line.MOQ <= 1 || line.Quantity >= line.MOQ {
			continue
		}
		out = append(out, MOQShortfall{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			RequiredQty:  line.MOQ,
			RequestedQty: line.Quantity,
		})
	}
	return out
}
