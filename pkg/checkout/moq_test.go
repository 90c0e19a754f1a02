package checkout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMOQShortfalls(t *testing.T) {
	short := uuid.New()
	lines := []MOQLine{
		{ProductID: uuid.New(), ProductName: "Sel fin", MOQ: 1, Quantity: 1},
		{ProductID: uuid.New(), ProductName: "Olives vertes", MOQ: 3, Quantity: 3},
		{ProductID: short, ProductName: "Huile 5L", MOQ: 6, Quantity: 2},
		{ProductID: uuid.New(), ProductName: "Câpres", MOQ: 0, Quantity: 1},
	}

	got := MOQShortfalls(lines)
	require.Len(t, got, 1)
	assert.Equal(t, short, got[0].ProductID)
	assert.Equal(t, 6, got[0].RequiredQty)
	assert.Equal(t, 2, got[0].RequestedQty)
}

func TestMOQShortfallsEmpty(t *testing.T) {
	assert.Nil(t, MOQShortfalls(nil))
}
