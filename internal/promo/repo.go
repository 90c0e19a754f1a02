package promo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// Repository persists promo rules and reads buyer spend.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListRules(ctx context.Context, activeOnly bool) ([]models.PromoRule, error)
	FindRule(ctx context.Context, id uuid.UUID) (*models.PromoRule, error)
	FindActiveByThreshold(ctx context.Context, threshold decimal.Decimal) (*models.PromoRule, error)
	CreateRule(ctx context.Context, rule *models.PromoRule) error
	SaveRule(ctx context.Context, rule *models.PromoRule) error
	BuyerSpendOrders(ctx context.Context, buyerID uuid.UUID) ([]SpendOrder, error)
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

func (r *repository) ListRules(ctx context.Context, activeOnly bool) ([]models.PromoRule, error) {
	var rules []models.PromoRule
	q := r.db.WithContext(ctx).Model(&models.PromoRule{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("threshold_total_spent ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) FindRule(ctx context.Context, id uuid.UUID) (*models.PromoRule, error) {
	var rule models.PromoRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) FindActiveByThreshold(ctx context.Context, threshold decimal.Decimal) (*models.PromoRule, error) {
	var rule models.PromoRule
	err := r.db.WithContext(ctx).
		Where("active = ? AND threshold_total_spent = ?", true, threshold).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) CreateRule(ctx context.Context, rule *models.PromoRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) SaveRule(ctx context.Context, rule *models.PromoRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// BuyerSpendOrders loads the status and total of every order that can count
// toward the buyer's spend.
func (r *repository) BuyerSpendOrders(ctx context.Context, buyerID uuid.UUID) ([]SpendOrder, error) {
	var rows []struct {
		Status      enums.OrderStatus
		TotalAmount decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, total_amount").
		Where("buyer_id = ? AND status IN ?", buyerID, []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusDelivered}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]SpendOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, SpendOrder{Status: row.Status, TotalAmount: row.TotalAmount})
	}
	return out, nil
}
