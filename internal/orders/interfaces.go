package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, their items and the
// companion tracking row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateTracking(ctx context.Context, tracking *models.DeliveryTracking) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateTrackingStatus(ctx context.Context, orderID uuid.UUID, status enums.TrackingStatus) error
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	ListAllOrders(ctx context.Context, params pagination.Params, filters AdminListFilters) ([]models.Order, *pagination.Cursor, error)
	RevenueExcludingCancelled(ctx context.Context) (decimal.Decimal, error)
	CountByStatus(ctx context.Context, status enums.OrderStatus) (int64, error)
	ItemRevenueByCategory(ctx context.Context) ([]CategoryRevenue, error)
}

// CategoryRevenue is the item subtotal sum for one category name. An empty
// name groups items whose product or category no longer exists.
type CategoryRevenue struct {
	CategoryName string
	Revenue      decimal.Decimal
}
