package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service
// and by checkout.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	AddQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	SetQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (int64, error)
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (int64, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}
