package visits

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the report and its photos.
func (r *Repository) Create(ctx context.Context, report *models.VisitReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *Repository) AddPhoto(ctx context.Context, photo *models.VisitPhoto) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

func (r *Repository) CountPhotos(ctx context.Context, reportID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VisitPhoto{}).Where("visit_report_id = ?", reportID).Count(&count).Error
	return count, err
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.VisitReport, error) {
	var report models.VisitReport
	if err := r.db.WithContext(ctx).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *Repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.VisitReport, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.VisitReport{}).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
	if filters.CommercialID != nil {
		query = query.Where("commercial_id = ?", *filters.CommercialID)
	}
	if filters.From != nil {
		query = query.Where("visit_date >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("visit_date <= ?", *filters.To)
	}
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.VisitReport
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params)
	return page, next, nil
}
