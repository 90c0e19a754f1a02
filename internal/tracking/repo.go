package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

// Repository persists delivery tracking rows and the order fields they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForUpdate(ctx context.Context, trackingID uuid.UUID) (*models.DeliveryTracking, error)
	Find(ctx context.Context, trackingID uuid.UUID) (*models.DeliveryTracking, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	OrdersByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, trackingID uuid.UUID, updates map[string]any) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	ApproveOrder(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, reviewerID uuid.UUID, at time.Time) (bool, error)
	ListForDriver(ctx context.Context, driverID uuid.UUID, includeDelivered bool) ([]models.DeliveryTracking, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.DeliveryTracking, *pagination.Cursor, error)
	CountForDriver(ctx context.Context, driverID uuid.UUID, statuses []enums.TrackingStatus, deliveredSince *time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindForUpdate(ctx context.Context, trackingID uuid.UUID) (*models.DeliveryTracking, error) {
	conn := r.db.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t models.DeliveryTracking
	if err := conn.Where("id = ?", trackingID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) Find(ctx context.Context, trackingID uuid.UUID) (*models.DeliveryTracking, error) {
	var t models.DeliveryTracking
	if err := r.db.WithContext(ctx).Where("id = ?", trackingID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) OrdersByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error) {
	out := make(map[uuid.UUID]models.Order, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, o := range rows {
		out[o.ID] = o
	}
	return out, nil
}

func (r *repository) FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Update(ctx context.Context, trackingID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryTracking{}).
		Where("id = ?", trackingID).
		Updates(updates).Error
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

// ApproveOrder moves a still-pending order to status and records the
// reviewer. It reports false when the order had already left pending.
func (r *repository) ApproveOrder(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, reviewerID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":       status,
			"validated_by": reviewerID,
			"validated_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ListForDriver(ctx context.Context, driverID uuid.UUID, includeDelivered bool) ([]models.DeliveryTracking, error) {
	query := r.db.WithContext(ctx).Where("driver_id = ?", driverID)
	if !includeDelivered {
		query = query.Where("status <> ?", enums.TrackingStatusDelivered)
	}
	var rows []models.DeliveryTracking
	if err := query.Order("updated_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.DeliveryTracking, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.DeliveryTracking{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DriverID != nil {
		query = query.Where("driver_id = ?", *filters.DriverID)
	}
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.DeliveryTracking
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params)
	return page, next, nil
}

func (r *repository) CountForDriver(ctx context.Context, driverID uuid.UUID, statuses []enums.TrackingStatus, deliveredSince *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.DeliveryTracking{}).
		Where("driver_id = ? AND status IN ?", driverID, statuses)
	if deliveredSince != nil {
		query = query.Where("delivered_at >= ?", *deliveredSince)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}
