package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

// orderNumberLockKey serializes order number allocation across postgres
// transactions.
const orderNumberLockKey int64 = 0x6d79_6772_6f73

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NextOrderNumber returns MAX(order_number)+1. On postgres the caller's
// transaction takes an advisory lock first; the unique constraint still
// guards any race that slips through.
func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	conn := r.db.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		if err := conn.Exec("SELECT pg_advisory_xact_lock(?)", orderNumberLockKey).Error; err != nil {
			return 0, err
		}
	}
	var current sql.NullInt64
	if err := conn.Model(&models.Order{}).Select("MAX(order_number)").Scan(&current).Error; err != nil {
		return 0, err
	}
	return current.Int64 + 1, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateTracking(ctx context.Context, tracking *models.DeliveryTracking) error {
	return r.db.WithContext(ctx).Create(tracking).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	conn := r.db.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := conn.Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Tracking").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) UpdateTrackingStatus(ctx context.Context, orderID uuid.UUID, status enums.TrackingStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryTracking{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID)
	return r.page(query, params)
}

func (r *repository) ListAllOrders(ctx context.Context, params pagination.Params, filters AdminListFilters) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return r.page(query, params)
}

func (r *repository) page(query *gorm.DB, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.Order
	if err := query.Preload("Tracking").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params)
	return page, next, nil
}

func (r *repository) RevenueExcludingCancelled(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("status <> ?", enums.OrderStatusCancelled).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *repository) CountByStatus(ctx context.Context, status enums.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *repository) ItemRevenueByCategory(ctx context.Context) ([]CategoryRevenue, error) {
	var rows []CategoryRevenue
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("COALESCE(c.name, '') AS category_name, COALESCE(SUM(oi.subtotal), 0) AS revenue").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("LEFT JOIN products p ON p.id = oi.product_id").
		Joins("LEFT JOIN categories c ON c.id = p.category_id").
		Where("o.status <> ?", enums.OrderStatusCancelled).
		Group("COALESCE(c.name, '')").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
