package contact

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, m *models.ContactMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.ContactMessage, error) {
	var m models.ContactMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContactStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ContactMessage{}).
		Where("id = ?", id).
		Update("status", status)
	return res.RowsAffected, res.Error
}

func (r *Repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.ContactMessage, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.ContactMessage{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.ContactMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params)
	return page, next, nil
}
