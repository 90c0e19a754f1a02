package messages

import (
	"context"
	"time"

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

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) FindProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkRead stamps read_at once. Already read rows are left untouched.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error
}

// visibleTo scopes the query to what a user of the given role may read.
func visibleTo(query *gorm.DB, userID uuid.UUID, role enums.Role) *gorm.DB {
	audiences := audiencesFor(role)
	if role.IsBackOffice() {
		return query.Where(
			"((is_broadcast = ? AND target_role IN ?) OR recipient_id = ? OR sender_id = ? OR (is_broadcast = ? AND recipient_id IS NULL))",
			true, audiences, userID, userID, false,
		)
	}
	return query.Where(
		"((is_broadcast = ? AND target_role IN ?) OR recipient_id = ? OR sender_id = ?)",
		true, audiences, userID, userID,
	)
}

func (r *Repository) Inbox(ctx context.Context, userID uuid.UUID, role enums.Role, params pagination.Params) ([]models.Message, *pagination.Cursor, error) {
	query := visibleTo(r.db.WithContext(ctx).Model(&models.Message{}), userID, role)
	query, err := pagination.Newest(query, params)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params)
	return page, next, nil
}

// UnreadCount counts direct messages waiting for the user. Back-office staff see
// the unread support desk.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID, role enums.Role) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("read_at IS NULL AND is_broadcast = ?", false)
	if role.IsBackOffice() {
		query = query.Where("(recipient_id = ? OR (recipient_id IS NULL AND sender_id <> ?))", userID, userID)
	} else {
		query = query.Where("recipient_id = ?", userID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}
