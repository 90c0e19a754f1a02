package accessrequests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, req *models.AccessRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) HasPending(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccessRequest{}).
		Where("user_id = ? AND status = ?", userID, enums.AccessRequestPending).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.AccessRequest, error) {
	conn := r.db.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var req models.AccessRequest
	if err := conn.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.AccessRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *Repository) UpdateProfileRole(ctx context.Context, userID uuid.UUID, role enums.Role) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", userID).
		Update("role", role).Error
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AccessRequest, error) {
	var rows []models.AccessRequest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.AccessRequest, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.AccessRequest{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.AccessRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params)
	return page, next, nil
}
